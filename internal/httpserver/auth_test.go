package httpserver

import (
	"database/sql"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/robalobadob/snakeword/apps/go-server/assets"
	"github.com/robalobadob/snakeword/apps/go-server/internal/room"
	"github.com/robalobadob/snakeword/apps/go-server/internal/store"
)

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	schema, err := fs.ReadFile(assets.Migrations(), "001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatal(err)
	}
	rooms := room.NewManager()
	ts := httptest.NewServer(New(rooms, store.NewSQLiteStore(db), db).Router())
	t.Cleanup(func() {
		ts.Close()
		rooms.Close()
		db.Close()
	})
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestAuth_SignupLoginMe(t *testing.T) {
	ts := newAuthServer(t)

	res := postJSON(t, ts.URL+"/auth/signup", `{"username":"alice_1","password":"correct horse"}`)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("signup status %d", res.StatusCode)
	}

	dup := postJSON(t, ts.URL+"/auth/signup", `{"username":"ALICE_1","password":"correct horse"}`)
	dup.Body.Close()
	if dup.StatusCode != http.StatusConflict {
		t.Errorf("duplicate signup status %d, want 409", dup.StatusCode)
	}

	bad := postJSON(t, ts.URL+"/auth/login", `{"username":"alice_1","password":"wrong password"}`)
	bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status %d", bad.StatusCode)
	}

	login := postJSON(t, ts.URL+"/auth/login", `{"username":"alice_1","password":"correct horse"}`)
	var body struct{ Token string }
	_ = json.NewDecoder(login.Body).Decode(&body)
	login.Body.Close()
	if body.Token == "" {
		t.Fatalf("login returned no token")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	me, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer me.Body.Close()
	var prof map[string]any
	_ = json.NewDecoder(me.Body).Decode(&prof)
	if me.StatusCode != http.StatusOK || prof["username"] != "alice_1" || prof["gamesPlayed"] != float64(0) {
		t.Errorf("me %d %v", me.StatusCode, prof)
	}

	anon, _ := http.Get(ts.URL + "/auth/me")
	anon.Body.Close()
	if anon.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous me status %d", anon.StatusCode)
	}
}

func TestValidateSignup(t *testing.T) {
	tests := []struct {
		user, pass string
		ok         bool
	}{
		{"bob", "longenough", true},
		{"bo", "longenough", false},
		{"bob!", "longenough", false},
		{"bob", "short", false},
	}
	for _, tt := range tests {
		if err := validateSignup(tt.user, tt.pass); (err == nil) != tt.ok {
			t.Errorf("validateSignup(%q, %q) = %v", tt.user, tt.pass, err)
		}
	}
}
