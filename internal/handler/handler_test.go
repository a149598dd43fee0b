package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/llm"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/mailer"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/cache"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/jwtutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubLLM answers every prompt with reply, or fails with err
type stubLLM struct {
	mu    sync.Mutex
	reply string
	err   error
}

func (s *stubLLM) Complete(_ context.Context, _ []llm.Message, _ llm.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply, s.err
}

func (s *stubLLM) set(reply string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply, s.err = reply, err
}

// outbox records mail sent in the background
type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) find(to string) (mailer.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, m := range o.sent {
		if m.To == to {
			return m, true
		}
	}
	return mailer.Message{}, false
}

type testEnv struct {
	e      *echo.Echo
	db     *gorm.DB
	llm    *stubLLM
	outbox *outbox
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	database.SetDB(db)
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "handler-test", ExpirationHours: 1})

	cfg := &config.Config{
		Server: config.ServerConfig{FrontendURL: "http://app.test"},
		Chatbot: config.ChatbotConfig{
			SelectionThreshold: 3,
			MaxSnippets:        5,
			HistoryLimit:       10,
			MaxMessageChars:    500,
			ContextTTL:         time.Minute,
		},
	}
	store := cache.NewMemory()
	completer := &stubLLM{reply: "Happy to help!"}
	box := &outbox{}

	Init(Deps{
		Config:  cfg,
		Cache:   store,
		LLM:     completer,
		Chatbot: chatbot.NewService(db, completer, store, cfg.Chatbot),
		Mailer:  box,
	})

	e := echo.New()
	RegisterRoutes(e)
	return &testEnv{e: e, db: db, llm: completer, outbox: box}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func tokenFor(t *testing.T, u model.User, b model.Business, role string) string {
	t.Helper()
	token, err := jwtutil.GenerateTokenWithBusiness(u.Email, u.ID, b.ID, b.Name, role)
	require.NoError(t, err)
	return token
}

func seedOffering(t *testing.T, db *gorm.DB, businessID uint, name string, price int64) model.Offering {
	t.Helper()
	o := model.Offering{BusinessID: businessID, Name: name, PriceCents: price, Currency: "usd", Active: true}
	require.NoError(t, db.Create(&o).Error)
	return o
}

func seedMember(t *testing.T, db *gorm.DB, b model.Business, email, role string) model.User {
	t.Helper()
	u := model.User{Email: email}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&model.TeamMember{
		BusinessID:  b.ID,
		UserID:      &u.ID,
		Email:       email,
		Role:        role,
		Status:      model.MemberActive,
		InviteToken: strings.ReplaceAll(email, "@", "-"),
	}).Error)
	return u
}

var errLLMDown = errors.New("llm down")

func itoa(f float64) string {
	return strconv.FormatUint(uint64(f), 10)
}
