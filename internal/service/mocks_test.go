package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"lumos-api/internal/domain"
	"lumos-api/internal/email"
	"lumos-api/internal/google"
	"lumos-api/internal/repository"
)

type mockUserRepo struct {
	mu            sync.Mutex
	usersByID     map[string]domain.User
	usersByEmail  map[string]string
	createErr     error
	linkGoogleHit int
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

func (m *mockUserRepo) usernameTaken(username, exceptID string) bool {
	for id, u := range m.usersByID {
		if u.Username == username && id != exceptID {
			return true
		}
	}
	return false
}

func (m *mockUserRepo) CreateIfNotExists(_ context.Context, user domain.User) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domain.User{}, false, m.createErr
	}
	if id, ok := m.usersByEmail[user.Email]; ok {
		return m.usersByID[id], false, nil
	}
	if m.usernameTaken(user.Username, "") {
		return domain.User{}, false, repository.ErrUsernameConflict
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
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsEmailVerified = true
	user.UpdatedAt = at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) LinkGoogle(_ context.Context, id, googleID string, avatarURL *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkGoogleHit++
	user, ok := m.usersByID[id]
	if !ok || user.GoogleID != nil {
		return false, nil
	}
	user.GoogleID = &googleID
	if avatarURL != nil {
		user.AvatarURL = avatarURL
	}
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
	if m.usernameTaken(username, id) {
		return repository.ErrUsernameConflict
	}
	user.FirstName = firstName
	user.LastName = lastName
	user.Username = username
	user.UpdatedAt = at
	m.usersByID[id] = user
	return nil
}

type mockCredentialRepo struct {
	creds map[string]domain.UserCredential
}

func newMockCredentialRepo() *mockCredentialRepo {
	return &mockCredentialRepo{creds: make(map[string]domain.UserCredential)}
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

// mockMagicLinkRepo reproduce el CAS de Consume con un mutex.
type mockMagicLinkRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.MagicLink
	byToken map[string]string
}

func newMockMagicLinkRepo() *mockMagicLinkRepo {
	return &mockMagicLinkRepo{
		byID:    make(map[string]domain.MagicLink),
		byToken: make(map[string]string),
	}
}

func (m *mockMagicLinkRepo) Create(_ context.Context, link domain.MagicLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byToken[link.Token]; ok {
		return errors.New("duplicate token")
	}
	m.byID[link.ID] = link
	m.byToken[link.Token] = link.ID
	return nil
}

func (m *mockMagicLinkRepo) GetByToken(_ context.Context, token string) (domain.MagicLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[token]
	if !ok {
		return domain.MagicLink{}, pgx.ErrNoRows
	}
	return m.byID[id], nil
}

func (m *mockMagicLinkRepo) Consume(_ context.Context, id string, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.byID[id]
	if !ok || link.IsUsed || !usedAt.Before(link.ExpiresAt) {
		return false, nil
	}
	link.IsUsed = true
	link.UsedAt = &usedAt
	m.byID[id] = link
	return true, nil
}

func (m *mockMagicLinkRepo) all() []domain.MagicLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MagicLink, 0, len(m.byID))
	for _, l := range m.byID {
		out = append(out, l)
	}
	return out
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
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (m *mockSessionRepo) Deactivate(_ context.Context, userID, sessionKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.sessions {
		s := &m.sessions[i]
		if s.UserID == userID && s.SessionKey == sessionKey && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepo) Touch(_ context.Context, userID, sessionKey string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		s := &m.sessions[i]
		if s.UserID == userID && s.SessionKey == sessionKey && s.IsActive {
			s.LastActivity = at
			return true, nil
		}
	}
	return false, nil
}

type mockEmailSender struct {
	mu       sync.Mutex
	sent     []email.MagicLinkMessage
	failures int
}

func (m *mockEmailSender) SendMagicLink(_ context.Context, msg email.MagicLinkMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockGoogleVerifier struct {
	profile google.Profile
	err     error
}

func (m *mockGoogleVerifier) Verify(_ context.Context, _ string) (google.Profile, error) {
	return m.profile, m.err
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) bool { return false }

type mockTagRepo struct {
	tags []domain.Tag
}

func (m *mockTagRepo) List(_ context.Context) ([]domain.Tag, error) {
	return m.tags, nil
}

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

type mockTechnologyRepo struct {
	techs []domain.Technology
}

func (m *mockTechnologyRepo) List(_ context.Context) ([]domain.Technology, error) {
	return m.techs, nil
}

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
	projects  []domain.Project
	images    []domain.ProjectImage
	created   []domain.Project
	lastLimit int
	lastOff   int
	nextID    int64
}

func (m *mockProjectRepo) Count(_ context.Context) (int, error) {
	return len(m.projects), nil
}

func (m *mockProjectRepo) List(_ context.Context, limit, offset int) ([]domain.Project, error) {
	m.lastLimit, m.lastOff = limit, offset
	if offset >= len(m.projects) {
		return []domain.Project{}, nil
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
	m.nextID++
	project.ID = 100 + m.nextID
	m.created = append(m.created, project)
	m.projects = append(m.projects, project)
	return project, nil
}

func (m *mockProjectRepo) AddImage(_ context.Context, image domain.ProjectImage) (domain.ProjectImage, error) {
	image.ID = int64(len(m.images) + 1)
	m.images = append(m.images, image)
	return image, nil
}

type mockObjectStore struct {
	keys []string
	body string
	err  error
}

func (m *mockObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	b, _ := io.ReadAll(body)
	m.body = string(b)
	m.keys = append(m.keys, key)
	return "https://cdn.lumos.dev/" + key, nil
}
