package provision

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/onboardly/onboardly/internal/config"
	"github.com/onboardly/onboardly/internal/drive"
	"github.com/onboardly/onboardly/internal/errors"
	"github.com/onboardly/onboardly/internal/logging"
	"github.com/onboardly/onboardly/internal/metrics"
	"github.com/onboardly/onboardly/internal/models"
	"github.com/onboardly/onboardly/internal/platform"
	"github.com/onboardly/onboardly/internal/store"
)

// clientPortalStep is the funnel step whose first page backs the command
// center link of a new account.
const clientPortalStep = "Client Portal"

// Workflow drives the tenant onboarding sequence end to end. One Workflow
// serves all requests; each Run is independent.
type Workflow struct {
	store    store.Store
	platform platform.Client
	drive    drive.Client
	cfg      config.Config
	logger   *logging.Logger
	metrics  *metrics.Metrics

	// sleep is swappable so tests run without wall-clock waits.
	sleep func(time.Duration)

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewWorkflow creates a workflow service over the given dependencies.
func NewWorkflow(st store.Store, pc platform.Client, dc drive.Client, cfg config.Config, logger *logging.Logger, m *metrics.Metrics) *Workflow {
	return &Workflow{
		store:    st,
		platform: pc,
		drive:    dc,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		sleep:    time.Sleep,
		inFlight: make(map[string]bool),
	}
}

// Run executes one provisioning sequence, emitting milestones on the stream.
// The stream receives exactly one terminal event. Already-created platform
// resources are compensated in reverse order when a later step fails.
func (w *Workflow) Run(ctx context.Context, req *models.ProvisioningRequest, stream Stream) {
	start := time.Now()
	var compensations []func()

	fail := func(step string, err error) {
		w.logger.ErrorWithContext(ctx, "provisioning step failed", "step", step, "error", err.Error())
		w.metrics.RecordStep(step, "failure")
		stream.Failure(err.Error())
		for i := len(compensations) - 1; i >= 0; i-- {
			compensations[i]()
		}
		w.metrics.RecordWorkflowDuration("failure", time.Since(start).Seconds())
	}

	if err := req.Validate(); err != nil {
		fail("validate", err)
		return
	}
	stream.Progress("request validated")
	w.metrics.RecordStep("validate", "success")

	agencyID := req.AgencyID
	if agencyID == "" {
		agencyID = w.cfg.Platform.AgencyID
	}
	ctx = logging.WithOwnerID(ctx, agencyID)

	cred, ok := w.store.GetCredential(agencyID)
	if !ok || !cred.Authorized() {
		fail("credential", &errors.ErrCredentialNotFound{OwnerID: agencyID})
		return
	}
	stream.Progress("credential loaded")
	w.metrics.RecordStep("credential", "success")

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !w.acquireEmail(email) {
		fail("uniqueness", &errors.ErrUserExists{Email: req.Email})
		return
	}
	defer w.releaseEmail(email)

	exists, err := w.platform.UserExists(ctx, cred.AccessToken, agencyID, req.Email)
	if err != nil {
		fail("uniqueness", &errors.ErrStepFailed{Step: "user search", Err: err})
		return
	}
	if exists {
		fail("uniqueness", &errors.ErrUserExists{Email: req.Email})
		return
	}
	stream.Progress("email available")
	w.metrics.RecordStep("uniqueness", "success")

	account, err := w.platform.CreateAccount(ctx, cred.AccessToken, req, agencyID, w.cfg.Platform.SnapshotID)
	if err != nil {
		fail("create_account", &errors.ErrStepFailed{Step: "create account", Err: err})
		return
	}
	stream.Progress("account created")
	w.metrics.RecordStep("create_account", "success")
	compensations = append(compensations, func() {
		if derr := w.platform.DeleteAccount(ctx, cred.AccessToken, account.ID); derr != nil {
			w.logger.ErrorWithContext(ctx, "account compensation failed",
				"account_id", account.ID, "error", derr.Error())
		}
	})

	if err := w.waitReady(ctx, cred.AccessToken, account.ID); err != nil {
		fail("account_ready", err)
		return
	}
	stream.Progress("account ready")
	w.metrics.RecordStep("account_ready", "success")

	password, err := GeneratePassword(w.cfg.Provisioning.PasswordLength)
	if err != nil {
		fail("create_user", err)
		return
	}
	user, err := w.platform.CreateUser(ctx, cred.AccessToken, platform.NewUser{
		AccountID:   account.ID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Password:    password,
		Role:        platform.AdminRole,
		Permissions: platform.DefaultUserPermissions(),
	})
	if err != nil {
		fail("create_user", &errors.ErrStepFailed{Step: "create user", Err: err})
		return
	}
	stream.Progress("user created")
	w.metrics.RecordStep("create_user", "success")
	w.logger.InfoWithContext(ctx, "initial user created", "account_id", account.ID, "user_id", user.ID)

	locationToken, pageID, err := w.resolvePortalPage(ctx, cred.AccessToken, agencyID, account.ID)
	if err != nil {
		fail("portal_link", err)
		return
	}
	stream.Progress("portal link resolved")
	w.metrics.RecordStep("portal_link", "success")

	folder, err := w.createAssetFolder(ctx, req)
	if err != nil {
		fail("create_folder", err)
		return
	}
	stream.Progress("folder created")
	w.metrics.RecordStep("create_folder", "success")

	w.syncFields(ctx, cred.AccessToken, agencyID, locationToken, account.ID, pageID, folder)
	stream.Progress("fields synced")
	w.metrics.RecordStep("sync_fields", "success")

	stream.Success("account provisioned", account.ID)
	w.metrics.RecordWorkflowDuration("success", time.Since(start).Seconds())
	w.logger.InfoWithContext(ctx, "provisioning complete",
		"account_id", account.ID, "business", req.BusinessName)
}

// waitReady polls for the new account until the platform serves it. Account
// materialization from a snapshot is asynchronous; creation returning an id
// does not mean the account is readable yet.
func (w *Workflow) waitReady(ctx context.Context, token, accountID string) error {
	interval := w.cfg.Provisioning.ReadyPollInterval
	timeout := w.cfg.Provisioning.ReadyTimeout

	var waited time.Duration
	for attempt := 1; ; attempt++ {
		if _, err := w.platform.GetAccount(ctx, token, accountID); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := interval * time.Duration(attempt)
		if waited+wait > timeout {
			return &errors.ErrReadinessTimeout{Operation: "account", Waited: waited.String()}
		}
		w.sleep(wait)
		waited += wait
	}
}

// resolvePortalPage issues a sub-token for the new account and walks its
// funnels for the first page of the step named "Client Portal".
func (w *Workflow) resolvePortalPage(ctx context.Context, agencyToken, agencyID, accountID string) (string, string, error) {
	locationToken, err := w.platform.LocationToken(ctx, agencyToken, agencyID, accountID)
	if err != nil {
		return "", "", &errors.ErrStepFailed{Step: "location token", Err: err}
	}

	// Freshly issued sub-tokens are not instantly honored platform-wide.
	w.sleep(w.cfg.Provisioning.FieldSettle)

	funnels, err := w.platform.ListFunnels(ctx, locationToken, accountID)
	if err != nil {
		return "", "", &errors.ErrStepFailed{Step: "list funnels", Err: err}
	}

	for _, funnel := range funnels {
		for _, step := range funnel.Steps {
			if step.Name != clientPortalStep {
				continue
			}
			if len(step.Pages) == 0 {
				break
			}
			return locationToken, step.Pages[0].ID, nil
		}
	}
	return "", "", &errors.ErrPortalNotFound{AccountID: accountID}
}

func (w *Workflow) createAssetFolder(ctx context.Context, req *models.ProvisioningRequest) (*drive.Folder, error) {
	folder, err := w.drive.CreateFolder(ctx, req.BusinessName, w.cfg.Storage.ParentFolderID)
	if err != nil {
		return nil, &errors.ErrStepFailed{Step: "create folder", Err: err}
	}
	if err := w.drive.ShareFolder(ctx, folder.ID, req.Email); err != nil {
		return nil, &errors.ErrStepFailed{Step: "share folder", Err: err}
	}
	return folder, nil
}

func (w *Workflow) acquireEmail(email string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[email] {
		return false
	}
	w.inFlight[email] = true
	return true
}

func (w *Workflow) releaseEmail(email string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, email)
}
