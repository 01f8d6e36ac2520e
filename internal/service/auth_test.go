package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory implementation of repository.UserRepository.
type fakeUserRepo struct {
	byID       map[int64]*model.User
	byUsername map[string]*model.User
	nextID     int64
	// set to a non-nil error to simulate a database failure
	createErr error
	lookupErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:       make(map[int64]*model.User),
		byUsername: make(map[string]*model.User),
		nextID:     1,
	}
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byUsername[user.Username]; ok {
		return apperror.UsernameTaken(user.Username)
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	copied := *user
	f.byID[user.ID] = &copied
	f.byUsername[user.Username] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.byUsername[username]
	if !ok {
		return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, u := range f.byID {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "no linked user"}
}

func (f *fakeUserRepo) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	u, ok := f.byID[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.AvatarURL = avatarURL
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAuthService returns an AuthService wired with fake dependencies.
// The TokenService uses a short secret, suitable for tests only.
func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	// Cost 4 is bcrypt minimum — makes tests fast
	ps := auth.NewPasswordServiceForTest(4)

	return NewAuthService(repo, ts, ps, DefaultPolicy(), testLogger())
}

// =========================================================================
// Register TESTS
// =========================================================================

func TestRegister(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.Register(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.User.ID == 0 {
		t.Error("User.ID should be set after register")
	}
	if result.User.AvatarURL != model.DefaultAvatarURL {
		t.Errorf("AvatarURL = %q, want default", result.User.AvatarURL)
	}
	if result.User.PasswordHash == "" || result.User.PasswordHash == "pw1" {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", result.User.PasswordHash)
	}
	if result.Session.UserID != result.User.ID || result.Session.Username != "alice" {
		t.Errorf("Session = %+v, want alice's session", result.Session)
	}
	if result.Token == "" {
		t.Fatal("Register() returned empty Token")
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "alice", "pw1"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(context.Background(), "alice", "other")
	if !errors.Is(err, apperror.ErrUsernameTaken) {
		t.Fatalf("second Register() error = %v, want ErrUsernameTaken", err)
	}
	if len(repo.byID) != 1 {
		t.Errorf("user count = %d, want 1", len(repo.byID))
	}
}

func TestRegister_UsernamesAreCaseSensitive(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "alice", "pw1"); err != nil {
		t.Fatalf("Register(alice) error = %v", err)
	}
	if _, err := svc.Register(context.Background(), "Alice", "pw1"); err != nil {
		t.Fatalf("Register(Alice) error = %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	long := make([]byte, auth.MaxPasswordBytes+1)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name     string
		username string
		password string
		field    string
	}{
		{"empty username", "", "pw", "username"},
		{"whitespace username", "   ", "pw", "username"},
		{"empty password", "alice", "", "password"},
		{"password too long", "alice", string(long), "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuthService(t, newFakeUserRepo())

			_, err := svc.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

func TestRegister_EmptyAllowedWhenPolicyRelaxed(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	svc.policy = Policy{EnforceNonEmpty: false}

	if _, err := svc.Register(context.Background(), "alice", ""); err != nil {
		t.Fatalf("Register() with empty password error = %v", err)
	}
}

// =========================================================================
// Authenticate TESTS
// =========================================================================

func TestAuthenticate(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	registered, err := svc.Register(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := svc.Authenticate(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if result.User.ID != registered.User.ID {
		t.Errorf("User.ID = %d, want %d", result.User.ID, registered.User.ID)
	}

	sess, err := svc.ParseSession(result.Token)
	if err != nil {
		t.Fatalf("ParseSession() error = %v", err)
	}
	if *sess != *result.Session {
		t.Errorf("token session = %+v, want %+v", sess, result.Session)
	}
}

func TestAuthenticate_FailuresLookIdentical(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "alice", "pw1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	ghID := int64(5)
	if err := repo.CreateUser(context.Background(), &model.User{Username: "gh-only", GitHubID: &ghID}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	_, errWrong := svc.Authenticate(context.Background(), "alice", "nope")
	_, errUnknown := svc.Authenticate(context.Background(), "mallory", "pw1")
	_, errNoPassword := svc.Authenticate(context.Background(), "gh-only", "")

	for name, err := range map[string]error{
		"wrong password": errWrong,
		"unknown user":   errUnknown,
		"no password":    errNoPassword,
	} {
		if !errors.Is(err, apperror.ErrInvalidCredentials) {
			t.Errorf("%s: error = %v, want ErrInvalidCredentials", name, err)
			continue
		}
		if err.Error() != errWrong.Error() {
			t.Errorf("%s: message %q differs from %q", name, err.Error(), errWrong.Error())
		}
	}
}

func TestAuthenticate_RepositoryError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.lookupErr = errors.New("database is on fire")
	svc := newTestAuthService(t, repo)

	_, err := svc.Authenticate(context.Background(), "alice", "pw1")
	if err == nil || errors.Is(err, apperror.ErrInvalidCredentials) {
		t.Fatalf("Authenticate() error = %v, want the repository error", err)
	}
}

// =========================================================================
// LoginWithGitHub TESTS
// =========================================================================

func TestLoginWithGitHub_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	result, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{
		ID:        42,
		Login:     "octocat",
		AvatarURL: "https://avatars.githubusercontent.com/u/42",
	})
	if err != nil {
		t.Fatalf("LoginWithGitHub() error = %v", err)
	}

	if result.User.Username != "octocat" {
		t.Errorf("Username = %q, want %q", result.User.Username, "octocat")
	}
	if result.User.AvatarURL != "https://avatars.githubusercontent.com/u/42" {
		t.Errorf("AvatarURL = %q, want the GitHub avatar", result.User.AvatarURL)
	}
	if result.User.GitHubID == nil || *result.User.GitHubID != 42 {
		t.Errorf("GitHubID = %v, want 42", result.User.GitHubID)
	}
}

func TestLoginWithGitHub_ExistingUserKeepsAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	first, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 99, Login: "octocat"})
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}
	second, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 99, Login: "renamed"})
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("second login user = %d, want %d", second.User.ID, first.User.ID)
	}
	if len(repo.byID) != 1 {
		t.Errorf("user count = %d, want 1", len(repo.byID))
	}
}

func TestLoginWithGitHub_UsernameHeldByPasswordAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	if _, err := svc.Register(context.Background(), "octocat", "pw1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "octocat"})
	if !errors.Is(err, apperror.ErrUsernameTaken) {
		t.Fatalf("LoginWithGitHub() error = %v, want ErrUsernameTaken", err)
	}
}

func TestLoginWithGitHub_NilGitHubUser(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	if _, err := svc.LoginWithGitHub(context.Background(), nil); err == nil {
		t.Fatal("LoginWithGitHub() should return error for nil GitHubUser")
	}
}

// =========================================================================
// UpdateAvatar / Me / EnsureUser TESTS
// =========================================================================

func TestUpdateAvatar(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	reg, err := svc.Register(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := svc.UpdateAvatar(context.Background(), reg.Session, "/uploads/abc.png")
	if err != nil {
		t.Fatalf("UpdateAvatar() error = %v", err)
	}
	if result.Session.AvatarURL != "/uploads/abc.png" {
		t.Errorf("Session.AvatarURL = %q, want the new avatar", result.Session.AvatarURL)
	}

	sess, err := svc.ParseSession(result.Token)
	if err != nil {
		t.Fatalf("ParseSession() error = %v", err)
	}
	if sess.AvatarURL != "/uploads/abc.png" {
		t.Errorf("token avatar = %q, want the new avatar", sess.AvatarURL)
	}
}

func TestUpdateAvatar_RequiresSession(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.UpdateAvatar(context.Background(), nil, "/uploads/abc.png")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Fatalf("UpdateAvatar() error = %v, want ErrUnauthenticated", err)
	}
}

func TestMe(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	reg, err := svc.Register(context.Background(), "alice", "pw1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	user, err := svc.Me(context.Background(), reg.Session)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want alice", user.Username)
	}

	if _, err := svc.Me(context.Background(), nil); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Me(nil) error = %v, want ErrUnauthenticated", err)
	}
}

func TestEnsureUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)

	created, err := svc.EnsureUser(context.Background(), "admin", "secret")
	if err != nil || !created {
		t.Fatalf("first EnsureUser() = %v, %v; want true, nil", created, err)
	}

	created, err = svc.EnsureUser(context.Background(), "admin", "different")
	if err != nil || created {
		t.Fatalf("second EnsureUser() = %v, %v; want false, nil", created, err)
	}
	if len(repo.byID) != 1 {
		t.Errorf("user count = %d, want 1", len(repo.byID))
	}
}

func TestParseSession_InvalidToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	if _, err := svc.ParseSession("not-a-jwt"); err == nil {
		t.Fatal("ParseSession() should reject a malformed token")
	}
}
