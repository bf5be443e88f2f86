package echoapi

import (
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kotoba-school/kotoba/core"
	"github.com/kotoba-school/kotoba/core/access"
	"github.com/kotoba-school/kotoba/core/quiz"
)

type quizApi struct {
	svc      quiz.Service
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := quizApi{
		svc:      deps.QuizSvc,
		validate: deps.Validate,
	}

	qg := g.Group("/quiz", jwt)
	qg.POST("", api.create, guardMiddleware(access.Requirement{Role: access.RoleTeacher, Permission: access.PermQuizCreate}))
	qg.GET("", api.query, guardMiddleware(access.Requirement{Permission: access.PermQuizRead}))
	qg.GET("/:id", api.retrieve, guardMiddleware(access.Requirement{Permission: access.PermQuizRead}))
	qg.PUT("/:id", api.update, guardMiddleware(access.Requirement{Role: access.RoleTeacher, Permission: access.PermQuizUpdate}))
	qg.DELETE("/:id", api.destroy, guardMiddleware(access.Requirement{Role: access.RoleTeacher, Permission: access.PermQuizDelete}))

	g.POST("/quiz-attempt", api.recordAttempt, jwt, guardMiddleware(access.Requirement{Permission: access.PermQuizAttempt}))
	g.GET("/quiz-attempts", api.queryAttempts, jwt)
	g.GET("/quiz-attempts/:quizId", api.queryAttempts, jwt)

	sess := sessionApi{
		svc:     deps.QuizSvc,
		logger:  deps.Logger,
		engines: make(map[string]*quiz.Engine),
	}
	sg := g.Group("/quiz-session", jwt, guardMiddleware(access.Requirement{Permission: access.PermQuizAttempt}))
	sg.POST("/start", sess.start)
	sg.GET("", sess.state)
	sg.POST("/answer", sess.answer)
	sg.POST("/next", sess.next)
	sg.POST("/prev", sess.prev)
	sg.POST("/submit", sess.submit)
	sg.POST("/reset", sess.reset)
}

// Handlers

func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	qz, err := api.svc.Create(claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, dataResponse(qz))
}

// query lists quizzes. Students only see published ones; authors and admins
// see drafts too.
func (api *quizApi) query(ctx echo.Context) error {
	filter := new(quiz.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, dataResponse([]quiz.Quiz{}))
	}
	filter.Clean()

	sub := contextSubject(ctx)
	if !access.HasPermission(sub.Role, access.PermQuizUpdate) {
		published := true
		filter.Published = &published
	}

	quizzes, err := api.svc.Filter(*filter)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	return ctx.JSON(http.StatusOK, dataResponse(quizzes))
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	qz, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == quiz.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding quiz by ID")
	}

	sub := contextSubject(ctx)
	if !qz.Published && !access.HasPermission(sub.Role, access.PermQuizUpdate) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, dataResponse(qz))
}

func (api *quizApi) update(ctx echo.Context) error {
	var data quiz.UpdateQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	qz, err := api.svc.Update(ctx.Param("id"), data, claims.Subject, claims.EffectiveRole())
	if err != nil {
		switch errors.Cause(err) {
		case quiz.ErrNotFound:
			return errHttpNotFound
		case quiz.ErrNotOwner:
			return errHttpForbidden
		case quiz.ErrQuizLocked:
			return core.NewValidationError(errors.New("this quiz has recorded attempts and can no longer be edited"))
		}
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, dataResponse(qz))
}

func (api *quizApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Delete(claims.Subject, claims.EffectiveRole(), ctx.Param("id")); err != nil {
		switch errors.Cause(err) {
		case quiz.ErrNotFound:
			return errHttpNotFound
		case quiz.ErrNotOwner:
			return errHttpForbidden
		}
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// recordAttempt grades and stores a one-shot submission. Interactive clients
// use the session endpoints instead.
func (api *quizApi) recordAttempt(ctx echo.Context) error {
	var data quiz.NewAttempt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttempt")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	att, err := api.svc.RecordAttempt(claims.Subject, data)
	if err != nil {
		switch errors.Cause(err) {
		case quiz.ErrNotFound:
			return errHttpNotFound
		case quiz.ErrMaxAttempts:
			return core.NewValidationError(quiz.ErrMaxAttempts)
		}
		return errors.Wrap(err, "recording attempt")
	}
	return ctx.JSON(http.StatusCreated, dataResponse(att))
}

// queryAttempts lists the caller's attempts; admins see everyone's.
func (api *quizApi) queryAttempts(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := quiz.AttemptFilter{QuizID: ctx.Param("quizId")}
	if claims.EffectiveRole() != access.RoleAdmin {
		filter.UserID = claims.Subject
	}

	attempts, err := api.svc.Attempts(filter)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, dataResponse(attempts))
}

// sessionApi holds one live quiz engine per user. Engines are created on
// first use and survive across requests until reset or server restart.
type sessionApi struct {
	mu      sync.Mutex
	svc     quiz.Service
	logger  core.Logger
	engines map[string]*quiz.Engine
}

// SessionState is the engine snapshot returned by every session endpoint.
type SessionState struct {
	State     string         `json:"state"`
	Remaining int            `json:"remaining"`
	Cursor    int            `json:"cursor"`
	Question  *quiz.Question `json:"question,omitempty"`
}

type (
	StartSessionRequest struct {
		QuizID string `json:"quiz_id"`
	}

	AnswerRequest struct {
		QuestionID string      `json:"question_id"`
		Answer     quiz.Answer `json:"answer"`
	}
)

func (api *sessionApi) engine(ctx echo.Context) (*quiz.Engine, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	eng, ok := api.engines[claims.Subject]
	if !ok {
		eng = quiz.NewEngine(claims.Subject, api.svc, nil, api.logger)
		api.engines[claims.Subject] = eng
	}
	return eng, nil
}

func (api *sessionApi) snapshot(eng *quiz.Engine) SessionState {
	state := SessionState{
		State:     eng.State().String(),
		Remaining: eng.Remaining(),
		Cursor:    eng.Cursor(),
	}
	if q, ok := eng.CurrentQuestion(); ok {
		q.Correct = quiz.Answer{} // never leak answers mid-session
		q.Explanation = ""
		state.Question = &q
	}
	return state
}

func (api *sessionApi) start(ctx echo.Context) error {
	var data StartSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartSessionRequest")
	}

	qz, err := api.svc.GetByID(data.QuizID)
	if err != nil {
		if errors.Cause(err) == quiz.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding quiz by ID")
	}
	if !qz.Published {
		return errHttpNotFound
	}

	eng, err := api.engine(ctx)
	if err != nil {
		return err
	}
	if err = eng.Start(qz); err != nil {
		if errors.Cause(err) == quiz.ErrMaxAttempts {
			return core.NewValidationError(quiz.ErrMaxAttempts)
		}
		return errors.Wrap(err, "starting quiz session")
	}
	return ctx.JSON(http.StatusOK, dataResponse(api.snapshot(eng)))
}

func (api *sessionApi) state(ctx echo.Context) error {
	eng, err := api.engine(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, dataResponse(api.snapshot(eng)))
}

func (api *sessionApi) answer(ctx echo.Context) error {
	var data AnswerRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}

	eng, err := api.engine(ctx)
	if err != nil {
		return err
	}
	eng.SubmitAnswer(data.QuestionID, data.Answer)
	return ctx.JSON(http.StatusOK, dataResponse(api.snapshot(eng)))
}

func (api *sessionApi) next(ctx echo.Context) error {
	eng, err := api.engine(ctx)
	if err != nil {
		return err
	}
	eng.Next()
	return ctx.JSON(http.StatusOK, dataResponse(api.snapshot(eng)))
}

func (api *sessionApi) prev(ctx echo.Context) error {
	eng, err := api.engine(ctx)
	if err != nil {
		return err
	}
	eng.Prev()
	return ctx.JSON(http.StatusOK, dataResponse(api.snapshot(eng)))
}

func (api *sessionApi) submit(ctx echo.Context) error {
	eng, err := api.engine(ctx)
	if err != nil {
		return err
	}

	att := eng.Submit()
	if att.StartedAt.IsZero() {
		return core.NewValidationError(errors.New("no active quiz session"))
	}
	return ctx.JSON(http.StatusOK, dataResponse(att))
}

func (api *sessionApi) reset(ctx echo.Context) error {
	eng, err := api.engine(ctx)
	if err != nil {
		return err
	}
	eng.Reset()
	return ctx.JSON(http.StatusOK, dataResponse(api.snapshot(eng)))
}
