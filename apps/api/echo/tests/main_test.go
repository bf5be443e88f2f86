package tests

import (
	"os"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/kotoba-school/kotoba/core"
	"github.com/kotoba-school/kotoba/core/user"
)

var (
	testConf       *core.Config
	testValidate   *validator.Validate
	testTranslator ut.Translator
)

func TestMain(m *testing.M) {
	testConf = core.NewConfig()
	testConf.Debug = false
	testConf.TestMode = true

	testValidate = validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	testTranslator, _ = uni.GetTranslator("en")
	core.InitValidators(testValidate, testTranslator)
	user.InitValidators(testValidate, testTranslator)

	core.ParseEmailTemplates(testConf, nopLogger{})
	user.LoadCommonPasswords(testConf, nopLogger{})

	os.Exit(m.Run())
}
