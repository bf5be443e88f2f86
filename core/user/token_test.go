package user

import (
	"testing"
	"time"
)

func TestMakeCheckToken(t *testing.T) {
	validTok, err := makeToken("t@test.jp", time.Hour)
	if err != nil {
		t.Fatalf("makeToken() failed: %v", err)
	}
	if validTok.Token == "" || validTok.Email != "t@test.jp" {
		t.Fatalf("makeToken() = %+v", validTok)
	}

	// generate an expired token
	nowFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredTok, _ := makeToken("t@test.jp", time.Hour)
	nowFunc = time.Now // reset

	usedTok, _ := makeToken("t@test.jp", time.Hour)
	usedTok.Used = true

	tests := []struct {
		name    string
		tok     ResetToken
		wantErr error
	}{
		{name: "valid token", tok: validTok},
		{name: "expired token", tok: expiredTok, wantErr: ErrTokenExpired},
		{name: "used token", tok: usedTok, wantErr: ErrTokenUsed},
		{name: "used wins over expired", tok: ResetToken{Used: true}, wantErr: ErrTokenUsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := checkToken(tt.tok); err != tt.wantErr {
				t.Errorf("checkToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMakeTokenUniqueness(t *testing.T) {
	a, _ := makeToken("t@test.jp", time.Hour)
	b, _ := makeToken("t@test.jp", time.Hour)
	if a.Token == b.Token {
		t.Error("makeToken() produced identical tokens")
	}
}
