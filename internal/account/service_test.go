package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hitoshi/classhub/internal/model"
	"github.com/hitoshi/classhub/internal/repository"
)

type fakeAccountRepo struct {
	byEmail map[string]*model.Account
	byID    map[string]*model.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		byEmail: make(map[string]*model.Account),
		byID:    make(map[string]*model.Account),
	}
}

func (f *fakeAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return f.byID[id], nil
}

func (f *fakeAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return f.byEmail[email], nil
}

func (f *fakeAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if _, exists := f.byEmail[account.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	f.byEmail[account.Email] = account
	f.byID[account.ID] = account
	return nil
}

// fakeTokenIssuer は発行・無効化の呼び出しを記録する。
type fakeTokenIssuer struct {
	issued      []string
	invalidated []string
	counter     int
}

func (f *fakeTokenIssuer) Create(ctx context.Context, accountID string) (string, error) {
	f.counter++
	f.issued = append(f.issued, accountID)
	return fmt.Sprintf("token-%d", f.counter), nil
}

func (f *fakeTokenIssuer) Invalidate(ctx context.Context, accountID string) error {
	f.invalidated = append(f.invalidated, accountID)
	return nil
}

type sentMail struct {
	to   string
	name string
	link string
}

// recordingMailer は送信内容を記録し、必要に応じてエラーを返す。
type recordingMailer struct {
	sent []sentMail
	err  error
}

func (m *recordingMailer) SendActivation(ctx context.Context, to, name, link string) error {
	m.sent = append(m.sent, sentMail{to: to, name: name, link: link})
	return m.err
}

const testBaseURL = "https://classhub.example.com"

func TestService_Provision_CreatesAccountAndSendsInvite(t *testing.T) {
	repo := newFakeAccountRepo()
	issuer := &fakeTokenIssuer{}
	mailer := &recordingMailer{}
	svc := NewService(repo, issuer, mailer, testBaseURL)

	account, err := svc.Provision(context.Background(), ProvisionInput{
		Email:     "Taro@Example.com",
		Role:      "TEACHER",
		FirstName: "太郎",
		LastName:  "山田",
	})
	if err != nil {
		t.Fatalf("Provision error: %v", err)
	}

	stored := repo.byEmail["taro@example.com"]
	if stored == nil {
		t.Fatal("expected account stored under normalized email")
	}
	if stored.Role != model.RoleTeacher {
		t.Errorf("Role = %q, want %q", stored.Role, model.RoleTeacher)
	}
	if stored.PasswordHash != "" {
		t.Errorf("PasswordHash = %q, want empty (not yet activated)", stored.PasswordHash)
	}
	if account.ID == "" {
		t.Error("expected generated account ID")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set at provisioning time")
	}
	if stored.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set at provisioning time")
	}

	if len(issuer.issued) != 1 || issuer.issued[0] != account.ID {
		t.Errorf("issued = %v, want one token for %s", issuer.issued, account.ID)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d mails, want 1", len(mailer.sent))
	}
	mail := mailer.sent[0]
	if mail.to != "taro@example.com" {
		t.Errorf("to = %q", mail.to)
	}
	wantLink := testBaseURL + "/setup?token=token-1"
	if mail.link != wantLink {
		t.Errorf("link = %q, want %q", mail.link, wantLink)
	}
}

func TestService_Provision_DuplicateEmail_ReturnsConflict(t *testing.T) {
	repo := newFakeAccountRepo()
	repo.byEmail["taken@example.com"] = &model.Account{ID: "existing", Email: "taken@example.com"}
	svc := NewService(repo, &fakeTokenIssuer{}, &recordingMailer{}, testBaseURL)

	_, err := svc.Provision(context.Background(), ProvisionInput{
		Email: "taken@example.com",
		Role:  "STUDENT",
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeDuplicateEmail {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeDuplicateEmail)
	}
}

func TestService_Provision_InvalidInput(t *testing.T) {
	svc := NewService(newFakeAccountRepo(), &fakeTokenIssuer{}, &recordingMailer{}, testBaseURL)

	tests := []struct {
		name  string
		input ProvisionInput
	}{
		{"空メールアドレス", ProvisionInput{Email: "", Role: "STUDENT"}},
		{"@なしメールアドレス", ProvisionInput{Email: "not-an-email", Role: "STUDENT"}},
		{"未定義ロール", ProvisionInput{Email: "a@example.com", Role: "PRINCIPAL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Provision(context.Background(), tt.input)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *model.APIError, got %v", err)
			}
			if apiErr.Code != model.ErrCodeValidation {
				t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeValidation)
			}
		})
	}
}

// メール送信の失敗ではアカウント作成が取り消されないこと
func TestService_Provision_MailFailure_DoesNotRollBack(t *testing.T) {
	repo := newFakeAccountRepo()
	issuer := &fakeTokenIssuer{}
	mailer := &recordingMailer{err: errors.New("smtp unreachable")}
	svc := NewService(repo, issuer, mailer, testBaseURL)

	account, err := svc.Provision(context.Background(), ProvisionInput{
		Email: "student@example.com",
		Role:  "STUDENT",
	})
	if err != nil {
		t.Fatalf("Provision error: %v", err)
	}
	if repo.byID[account.ID] == nil {
		t.Error("expected account to remain after mail failure")
	}
	if len(issuer.issued) != 1 {
		t.Errorf("issued = %d tokens, want 1 (recoverable via resend)", len(issuer.issued))
	}
}

func TestService_Resend_InvalidatesOldTokensAndSendsNewLink(t *testing.T) {
	repo := newFakeAccountRepo()
	account := &model.Account{
		ID:       "acct-1",
		Email:    "pending@example.com",
		Role:     model.RoleTeacher,
		LastName: "佐藤",
	}
	repo.byEmail[account.Email] = account
	repo.byID[account.ID] = account

	issuer := &fakeTokenIssuer{}
	mailer := &recordingMailer{}
	svc := NewService(repo, issuer, mailer, testBaseURL)

	if err := svc.Resend(context.Background(), "acct-1"); err != nil {
		t.Fatalf("Resend error: %v", err)
	}

	if len(issuer.invalidated) != 1 || issuer.invalidated[0] != "acct-1" {
		t.Errorf("invalidated = %v, want [acct-1]", issuer.invalidated)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d mails, want 1", len(mailer.sent))
	}
	if !strings.HasPrefix(mailer.sent[0].link, testBaseURL+"/setup?token=") {
		t.Errorf("link = %q", mailer.sent[0].link)
	}
}

func TestService_Resend_UnknownAccount_ReturnsNotFound(t *testing.T) {
	svc := NewService(newFakeAccountRepo(), &fakeTokenIssuer{}, &recordingMailer{}, testBaseURL)

	err := svc.Resend(context.Background(), "ghost")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeAccountNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeAccountNotFound)
	}
}
