package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/greatplr/membersync/app/models"
	"github.com/greatplr/membersync/app/repository"
	"github.com/greatplr/membersync/internal/pkg/config"
	"github.com/greatplr/membersync/internal/pkg/notify"
	"github.com/greatplr/membersync/internal/pkg/webhook"
)

var (
	// ErrEmailRequired marks payloads whose user section has no email. The
	// user matching policy cannot run without one, and retrying will not
	// change the payload.
	ErrEmailRequired = errors.New("email required in webhook payload")

	// ErrInstallationGone marks jobs whose installation was deleted after
	// enqueue. Workers discard instead of retrying.
	ErrInstallationGone = errors.New("installation no longer exists")
)

// CacheInvalidator drops cached access lookups for user identifiers after a
// write. The entitlements service implements it.
type CacheInvalidator interface {
	InvalidateAccessCache(identifiers ...string)
}

// Outcome describes what applying one event did, for audit logging.
type Outcome struct {
	Applied bool
	Skipped bool
	Message string
}

// Engine applies canonical webhook events to the local store. Each event runs
// in one database transaction covering user identity and subscription writes;
// cache invalidation and notifications happen after commit and never fail the
// event.
type Engine struct {
	db          *gorm.DB
	notifier    notify.Notifier
	invalidator CacheInvalidator
	cfg         config.Settings
}

func NewEngine(db *gorm.DB, notifier notify.Notifier, invalidator CacheInvalidator, cfg config.Settings) *Engine {
	return &Engine{
		db:          db,
		notifier:    notifier,
		invalidator: invalidator,
		cfg:         cfg,
	}
}

// Apply reconciles one event for one installation. Replaying the same event
// converges on the same final state.
func (e *Engine) Apply(ctx context.Context, installation *models.Installation, ev *webhook.CanonicalEvent) (Outcome, error) {
	if installation == nil {
		return Outcome{}, ErrInstallationGone
	}

	switch ev.Kind {
	case webhook.EventAccessGranted, webhook.EventAccessUpdated:
		return e.applyAccess(ctx, installation, ev)
	case webhook.EventAccessRevoked:
		return e.applyRevoke(ctx, installation, ev)
	case webhook.EventUserCreated, webhook.EventUserUpdated:
		return e.applyUser(ctx, installation, ev)
	case webhook.EventPaymentReceived, webhook.EventPaymentRefunded:
		return e.applyPayment(ctx, installation, ev)
	default:
		return Outcome{Skipped: true, Message: fmt.Sprintf("unknown event type: %s", ev.WireName)}, nil
	}
}

// applyAccess handles grants and updates. Users are always resolved or
// created here, independent of the user creation setting; an access grant
// without a local identity to attach to is useless.
func (e *Engine) applyAccess(ctx context.Context, installation *models.Installation, ev *webhook.CanonicalEvent) (Outcome, error) {
	var (
		user *models.User
		sub  *models.Subscription
	)

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		var err error
		user, err = e.findOrCreateUser(repos, installation, ev.User)
		if err != nil {
			return err
		}

		// subscriptionAdded arrives without an access record; the matching
		// accessAfterInsert carries it and writes the row.
		if !ev.HasAccess {
			return nil
		}

		sub, err = e.upsertSubscription(repos, installation, user, ev.Access)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	e.invalidateFor(ev)
	e.publishAccessEvent(ctx, installation, ev, user, sub)

	if sub == nil {
		return Outcome{Applied: true, Message: fmt.Sprintf("user %d resolved, no access record in payload", user.ID)}, nil
	}
	return Outcome{Applied: true, Message: fmt.Sprintf("access %d -> %s", ev.Access.AccessID, sub.Status)}, nil
}

// applyRevoke deletes the entitlement row. Senders without an access id in
// the revoke payload are matched by user and product instead. A missing row
// is a no-op, not an error.
func (e *Engine) applyRevoke(ctx context.Context, installation *models.Installation, ev *webhook.CanonicalEvent) (Outcome, error) {
	repos := repository.NewRepositories(e.db.WithContext(ctx))

	var (
		removed int64
		err     error
	)
	if ev.HasAccess && ev.Access.AccessID != 0 {
		removed, err = repos.Subscription.DeleteByAccessID(installation.ID, ev.Access.AccessID)
	} else {
		userID := ev.User.UserID
		if userID == 0 {
			userID = ev.Access.UserID
		}
		removed, err = repos.Subscription.DeleteByUserProduct(installation.ID, userID, ev.Access.ProductID)
	}
	if err != nil {
		return Outcome{}, err
	}

	e.invalidateFor(ev)
	e.publishAccessEvent(ctx, installation, ev, nil, nil)

	if removed == 0 {
		return Outcome{Applied: true, Message: "no matching entitlement record"}, nil
	}
	return Outcome{Applied: true, Message: fmt.Sprintf("removed %d entitlement record(s)", removed)}, nil
}

// applyUser handles user lifecycle events. These honor the user creation
// setting: installations that only mirror access state skip them.
func (e *Engine) applyUser(ctx context.Context, installation *models.Installation, ev *webhook.CanonicalEvent) (Outcome, error) {
	if !e.cfg.UserCreationEnabled {
		return Outcome{Skipped: true, Message: "user creation disabled"}, nil
	}

	var user *models.User
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		var err error
		user, err = e.findOrCreateUser(repos, installation, ev.User)
		if err != nil {
			return err
		}

		if ev.Kind == webhook.EventUserUpdated && e.cfg.SyncUserData {
			return e.syncUserFields(repos, user, ev.User)
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	e.invalidateFor(ev)

	kind := notify.EventUserCreated
	if ev.Kind == webhook.EventUserUpdated {
		kind = notify.EventUserUpdated
	}
	e.notifier.Publish(ctx, notify.Event{
		Type:           kind,
		InstallationID: installation.ID,
		AmemberUserID:  ev.User.UserID,
		LocalUserID:    uint64(user.ID),
		Email:          user.Email,
	})

	return Outcome{Applied: true, Message: fmt.Sprintf("user %d synced", user.ID)}, nil
}

// applyPayment records nothing locally; payments only invalidate cached
// access so entitlement changes billed alongside become visible.
func (e *Engine) applyPayment(ctx context.Context, installation *models.Installation, ev *webhook.CanonicalEvent) (Outcome, error) {
	e.invalidateFor(ev)

	kind := notify.EventPaymentReceived
	if ev.Kind == webhook.EventPaymentRefunded {
		kind = notify.EventPaymentRefunded
	}
	e.notifier.Publish(ctx, notify.Event{
		Type:           kind,
		InstallationID: installation.ID,
		AmemberUserID:  ev.User.UserID,
		Email:          ev.User.Email,
	})

	return Outcome{Applied: true, Message: fmt.Sprintf("payment %s noted", ev.Payment.PaymentID)}, nil
}

// findOrCreateUser implements the ordered matching policy: external id plus
// installation first, then email with link backfill, then create. An
// existing link to a different external id is never overwritten.
func (e *Engine) findOrCreateUser(repos *repository.Repositories, installation *models.Installation, uf webhook.UserFields) (*models.User, error) {
	email := strings.TrimSpace(uf.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	if uf.UserID != 0 {
		user, err := repos.User.GetByAmemberID(uf.UserID, installation.ID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user, err := repos.User.GetByEmail(email)
	if err == nil {
		changed := false
		if user.AmemberUserID == nil && uf.UserID != 0 {
			id := uf.UserID
			user.AmemberUserID = &id
			changed = true
		}
		if user.AmemberInstallationID == nil {
			instID := installation.ID
			user.AmemberInstallationID = &instID
			changed = true
		}
		if changed {
			if err := repos.User.Update(user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return e.createUser(repos, installation, uf, email)
}

func (e *Engine) createUser(repos *repository.Repositories, installation *models.Installation, uf webhook.UserFields, email string) (*models.User, error) {
	base := uf.Login
	if base == "" {
		base = email
		if at := strings.IndexByte(email, '@'); at > 0 {
			base = email[:at]
		}
	}

	name := strings.TrimSpace(uf.Name)
	if name == "" {
		name = strings.TrimSpace(uf.FirstName + " " + uf.LastName)
	}
	if name == "" {
		name = base
	}

	username, err := e.uniqueUsername(repos, base)
	if err != nil {
		return nil, err
	}

	raw, err := models.RandomPassword()
	if err != nil {
		return nil, err
	}
	hashed, err := models.HashPassword(raw)
	if err != nil {
		return nil, err
	}

	instID := installation.ID
	user := &models.User{
		Name:                  name,
		Username:              username,
		Email:                 email,
		Password:              hashed,
		AmemberInstallationID: &instID,
	}
	if uf.UserID != 0 {
		id := uf.UserID
		user.AmemberUserID = &id
	}

	if err := repos.User.Create(user); err != nil {
		return nil, err
	}

	log.Infof("[Reconcile] created user %d (%s) for installation %s", user.ID, email, installation.Slug)
	return user, nil
}

func (e *Engine) uniqueUsername(repos *repository.Repositories, base string) (string, error) {
	username := base
	for suffix := 1; ; suffix++ {
		exists, err := repos.User.UsernameExists(username)
		if err != nil {
			return "", err
		}
		if !exists {
			return username, nil
		}
		username = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func (e *Engine) upsertSubscription(repos *repository.Repositories, installation *models.Installation, user *models.User, access webhook.AccessFields) (*models.Subscription, error) {
	externalUserID := access.UserID
	if externalUserID == 0 && user.AmemberUserID != nil {
		externalUserID = *user.AmemberUserID
	}

	sub := &models.Subscription{
		InstallationID: installation.ID,
		AccessID:       access.AccessID,
		UserID:         externalUserID,
		ProductID:      access.ProductID,
		BeginDate:      access.BeginDate,
		ExpireDate:     access.ExpireDate,
		Status:         models.DeriveStatus(time.Now(), access.BeginDate, access.ExpireDate),
		Data:           access.RawJSON,
	}

	if err := repos.Subscription.Upsert(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// syncUserFields copies configured wire fields onto the local user, writing
// only when a value actually differs. name_f/name_l combine into the single
// local name column.
func (e *Engine) syncUserFields(repos *repository.Repositories, user *models.User, uf webhook.UserFields) error {
	changed := false
	syncName := false

	for _, field := range e.cfg.SyncableFields {
		switch field {
		case "email":
			if uf.Email != "" && user.Email != uf.Email {
				user.Email = uf.Email
				changed = true
			}
		case "username", "login":
			if uf.Login != "" && user.Username != uf.Login {
				user.Username = uf.Login
				changed = true
			}
		case "name":
			if uf.Name != "" && user.Name != uf.Name {
				user.Name = uf.Name
				changed = true
			}
		case "name_f", "name_l":
			syncName = true
		}
	}

	if syncName {
		fullName := strings.TrimSpace(uf.FirstName + " " + uf.LastName)
		if fullName != "" && user.Name != fullName {
			user.Name = fullName
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return repos.User.Update(user)
}

// invalidateFor drops cached access for every identifier the event names.
func (e *Engine) invalidateFor(ev *webhook.CanonicalEvent) {
	if e.invalidator == nil {
		return
	}
	ids := make([]string, 0, 2)
	if ev.User.Login != "" {
		ids = append(ids, ev.User.Login)
	}
	if ev.User.Email != "" && ev.User.Email != ev.User.Login {
		ids = append(ids, ev.User.Email)
	}
	if len(ids) > 0 {
		e.invalidator.InvalidateAccessCache(ids...)
	}
}

// publishAccessEvent emits the post-commit notification for grant, update
// and revoke events, enriched with the product mapping tier when one exists.
func (e *Engine) publishAccessEvent(ctx context.Context, installation *models.Installation, ev *webhook.CanonicalEvent, user *models.User, sub *models.Subscription) {
	var kind notify.EventType
	switch ev.Kind {
	case webhook.EventAccessGranted:
		kind = notify.EventSubscriptionAdded
	case webhook.EventAccessUpdated:
		kind = notify.EventSubscriptionUpdated
	case webhook.EventAccessRevoked:
		kind = notify.EventSubscriptionDeleted
	default:
		return
	}

	event := notify.Event{
		Type:           kind,
		InstallationID: installation.ID,
		AccessID:       ev.Access.AccessID,
		AmemberUserID:  ev.User.UserID,
		Email:          ev.User.Email,
		ProductID:      ev.Access.ProductID,
	}
	if user != nil {
		event.LocalUserID = uint64(user.ID)
	}
	if sub != nil {
		event.SubscriptionID = sub.ID
		event.Status = sub.Status
	}

	if event.ProductID != 0 {
		repos := repository.NewRepositories(e.db)
		if mapping, err := repos.Product.GetByAmemberProduct(installation.ID, event.ProductID); err == nil {
			event.ProductLabel = mapping.Label()
			event.Tier = mapping.Tier
		}
	}

	e.notifier.Publish(ctx, event)
}
