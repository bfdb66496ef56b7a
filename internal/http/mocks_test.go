package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lumos-api/internal/domain"
	"lumos-api/internal/email"
	"lumos-api/internal/google"
	"lumos-api/internal/repository"
	"lumos-api/internal/service"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) put(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
}

func (m *mockUserRepo) CreateIfNotExists(_ context.Context, user domain.User) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.usersByEmail[user.Email]; ok {
		return m.usersByID[id], false, nil
	}
	for _, u := range m.usersByID {
		if u.Username == user.Username {
			return domain.User{}, false, repository.ErrUsernameConflict
		}
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return user, true, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	id, ok := m.usersByEmail[email]
	m.mu.Unlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.usersByEmail[email]
	return ok, nil
}

func (m *mockUserRepo) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.usersByID[id]
	user.IsEmailVerified = true
	user.UpdatedAt = at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) LinkGoogle(_ context.Context, id, googleID string, avatarURL *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok || user.GoogleID != nil {
		return false, nil
	}
	user.GoogleID = &googleID
	user.AvatarURL = avatarURL
	user.IsEmailVerified = true
	user.UpdatedAt = at
	m.usersByID[id] = user
	return true, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id, firstName, lastName, username string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	for otherID, u := range m.usersByID {
		if otherID != id && u.Username == username {
			return repository.ErrUsernameConflict
		}
	}
	user.FirstName, user.LastName, user.Username, user.UpdatedAt = firstName, lastName, username, at
	m.usersByID[id] = user
	return nil
}

type mockCredentialRepo struct {
	creds map[string]domain.UserCredential
}

func (m *mockCredentialRepo) Upsert(_ context.Context, cred domain.UserCredential) error {
	m.creds[cred.UserID] = cred
	return nil
}

func (m *mockCredentialRepo) GetByUserID(_ context.Context, userID string) (domain.UserCredential, error) {
	cred, ok := m.creds[userID]
	if !ok {
		return domain.UserCredential{}, pgx.ErrNoRows
	}
	return cred, nil
}

type mockMagicLinkRepo struct {
	mu    sync.Mutex
	links map[string]domain.MagicLink
}

func (m *mockMagicLinkRepo) Create(_ context.Context, link domain.MagicLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.Token] = link
	return nil
}

func (m *mockMagicLinkRepo) GetByToken(_ context.Context, token string) (domain.MagicLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[token]
	if !ok {
		return domain.MagicLink{}, pgx.ErrNoRows
	}
	return link, nil
}

func (m *mockMagicLinkRepo) Consume(_ context.Context, id string, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, link := range m.links {
		if link.ID == id && link.IsValid(usedAt) {
			link.IsUsed = true
			link.UsedAt = &usedAt
			m.links[token] = link
			return true, nil
		}
	}
	return false, nil
}

type mockSessionRepo struct {
	mu       sync.Mutex
	sessions []domain.UserSession
}

func (m *mockSessionRepo) Create(_ context.Context, session domain.UserSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, session)
	return nil
}

func (m *mockSessionRepo) ListActiveByUser(_ context.Context, userID string) ([]domain.UserSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserSession
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if s := m.sessions[i]; s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) Deactivate(_ context.Context, userID, sessionKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.sessions {
		if m.sessions[i].UserID == userID && m.sessions[i].SessionKey == sessionKey && m.sessions[i].IsActive {
			m.sessions[i].IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) Touch(_ context.Context, userID, sessionKey string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].UserID == userID && m.sessions[i].SessionKey == sessionKey && m.sessions[i].IsActive {
			m.sessions[i].LastActivity = at
			return true, nil
		}
	}
	return false, nil
}

type mockTagRepo struct{ tags []domain.Tag }

func (m *mockTagRepo) List(context.Context) ([]domain.Tag, error) { return m.tags, nil }

func (m *mockTagRepo) ExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		for _, t := range m.tags {
			if t.ID == id {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

type mockTechnologyRepo struct{ techs []domain.Technology }

func (m *mockTechnologyRepo) List(context.Context) ([]domain.Technology, error) { return m.techs, nil }

func (m *mockTechnologyRepo) ExistingIDs(_ context.Context, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		for _, t := range m.techs {
			if t.ID == id {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

type mockProjectRepo struct {
	projects []domain.Project
	images   []domain.ProjectImage
}

func (m *mockProjectRepo) Count(context.Context) (int, error) { return len(m.projects), nil }

func (m *mockProjectRepo) List(_ context.Context, limit, offset int) ([]domain.Project, error) {
	if offset >= len(m.projects) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.projects) {
		end = len(m.projects)
	}
	return m.projects[offset:end], nil
}

func (m *mockProjectRepo) GetByID(_ context.Context, id int64) (domain.Project, error) {
	for _, p := range m.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Project{}, pgx.ErrNoRows
}

func (m *mockProjectRepo) Create(_ context.Context, project domain.Project) (domain.Project, error) {
	project.ID = int64(len(m.projects) + 1)
	m.projects = append(m.projects, project)
	return project, nil
}

func (m *mockProjectRepo) AddImage(_ context.Context, image domain.ProjectImage) (domain.ProjectImage, error) {
	image.ID = int64(len(m.images) + 1)
	m.images = append(m.images, image)
	return image, nil
}

type mockObjectStore struct{ keys []string }

func (m *mockObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	m.keys = append(m.keys, key)
	return "https://cdn.lumos.dev/" + key, nil
}

type mockEmailSender struct {
	sent []email.MagicLinkMessage
	err  error
}

func (m *mockEmailSender) SendMagicLink(_ context.Context, msg email.MagicLinkMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockGoogleVerifier struct {
	profile google.Profile
	err     error
}

func (m *mockGoogleVerifier) Verify(context.Context, string) (google.Profile, error) {
	return m.profile, m.err
}

// testServer arma el router completo sobre repos en memoria.
type testServer struct {
	router   http.Handler
	users    *mockUserRepo
	links    *mockMagicLinkRepo
	sessions *mockSessionRepo
	projects *mockProjectRepo
	store    *mockObjectStore
	sender   *mockEmailSender
	google   *mockGoogleVerifier
	jwt      *service.JWTService
	auth     *service.AuthService
}

func newTestServer(t *testing.T, withStorage bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	ts := &testServer{
		users:    newMockUserRepo(),
		links:    &mockMagicLinkRepo{links: make(map[string]domain.MagicLink)},
		sessions: &mockSessionRepo{},
		projects: &mockProjectRepo{},
		sender:   &mockEmailSender{},
		google:   &mockGoogleVerifier{},
		jwt:      service.NewJWTService("test-secret", time.Minute, time.Hour),
	}
	var store service.ObjectStore
	if withStorage {
		ts.store = &mockObjectStore{}
		store = ts.store
	}

	sessionSvc := service.NewSessionService(logger, ts.sessions)
	ts.auth = service.NewAuthService(
		logger,
		ts.users,
		&mockCredentialRepo{creds: make(map[string]domain.UserCredential)},
		ts.links,
		sessionSvc,
		ts.jwt,
		ts.sender,
		ts.google,
		service.NewMemoryRateLimiter(time.Minute, 100),
		service.AuthConfig{FrontendURL: "https://lumos.dev"},
	)
	tags := &mockTagRepo{tags: []domain.Tag{{ID: 1, Name: "backend"}}}
	techs := &mockTechnologyRepo{techs: []domain.Technology{{ID: 1, Name: "Go"}}}
	contentSvc := service.NewContentService(logger, tags, techs, ts.projects, store)

	ts.router = NewRouter(
		logger,
		ts.jwt,
		NewAuthHandler(logger, ts.auth, ts.jwt),
		NewUserHandler(logger, service.NewUserService(logger, ts.users), sessionSvc),
		NewContentHandler(logger, contentSvc),
	)
	return ts
}

// login crea el usuario con password y devuelve el par de tokens.
func (ts *testServer) login(t *testing.T, id, emailAddr string) service.TokenPair {
	t.Helper()
	ts.users.put(domain.User{ID: id, Email: emailAddr, Username: id, IsActive: true})
	if err := ts.auth.SetPassword(context.Background(), id, "correct horse"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	res, err := ts.auth.PasswordLogin(context.Background(), emailAddr, "correct horse", service.ClientInfo{})
	if err != nil {
		t.Fatalf("PasswordLogin: %v", err)
	}
	return res.Tokens
}

func performRequest(r http.Handler, method, path string, body any, accessToken string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}
