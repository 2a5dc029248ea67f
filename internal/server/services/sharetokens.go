package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JustWint3r/SecureShare/internal/common"
	"github.com/JustWint3r/SecureShare/internal/logging"
	"github.com/JustWint3r/SecureShare/internal/server/models"
	"github.com/JustWint3r/SecureShare/internal/server/ratelimit"
	"github.com/JustWint3r/SecureShare/internal/server/repositories/repomanager"
)

// tokenSize is the number of random bytes in a share token secret.
const tokenSize = 32

// IssueOptions bound the lifetime of a share token. Nil fields mean no bound.
type IssueOptions struct {
	ExpiresAt      *time.Time
	MaxRedemptions *int
}

func (o IssueOptions) validate(now time.Time) error {
	if o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
		return fmt.Errorf("%w: expiry must be in the future", common.ErrValidation)
	}
	if o.MaxRedemptions != nil && *o.MaxRedemptions <= 0 {
		return fmt.Errorf("%w: max redemptions must be positive", common.ErrValidation)
	}
	return nil
}

// IssuedToken is returned once at issuance. Token is the only copy of the
// secret; the server keeps its hash.
type IssuedToken struct {
	Token      string
	ShareToken *models.ShareToken
}

// Redemption is the outcome of redeeming a share token.
type Redemption struct {
	DocumentID string
	// Level is the redeemer's level after redemption, which can be higher
	// than the token's when an existing grant was already higher.
	Level      models.PermissionLevel
}

// ShareTokenConfig throttles redemption attempts per redeemer. A
// non-positive RedeemLimit disables throttling.
type ShareTokenConfig struct {
	RedeemLimit  int
	RedeemWindow time.Duration
}

// ShareTokenManager issues, redeems, reshares and deactivates share tokens.
type ShareTokenManager struct {
	*runner
	limiter ratelimit.Limiter
	cfg     ShareTokenConfig
	now     func() time.Time
}

// NewShareTokenManager constructs a ShareTokenManager. limiter may be nil
// when redemption is not throttled.
func NewShareTokenManager(m repomanager.RepositoryManager, permissions *PermissionStore, audit *AuditLedger, limiter ratelimit.Limiter, cfg ShareTokenConfig, log logging.Logger) *ShareTokenManager {
	if log == nil {
		log = logging.Nop{}
	}
	return &ShareTokenManager{
		runner:  newRunner(m, permissions, audit, log.With("module", "sharetokens")),
		limiter: limiter,
		cfg:     cfg,
		now:     time.Now,
	}
}

func hashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

// Issue creates a token for documentID on behalf of issuerID and records
// Issue. It performs no authorization; AccessControl.IssueShareToken does.
func (m *ShareTokenManager) Issue(ctx context.Context, documentID, issuerID string, level models.ShareLevel, opts IssueOptions) (*IssuedToken, error) {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: issuerID, Action: models.ActionIssue}
	var issued *IssuedToken
	err := m.run(ctx, entry, func(ctx context.Context, u *unit) error {
		doc, err := u.repos.Documents().Get(ctx, documentID)
		if errors.Is(err, common.ErrNotFound) {
			detach(entry)
			return err
		}
		if err != nil {
			return err
		}
		if doc.Deleted() {
			return fmt.Errorf("document %s: %w", documentID, common.ErrNotFound)
		}
		issued, err = m.issue(ctx, u, entry, doc, issuerID, level, opts, doc.OwnerID != issuerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// Reshare lets a holder of Write or more pass on access at no more than
// their own level. The new token is independent of the one the resharer
// redeemed.
func (m *ShareTokenManager) Reshare(ctx context.Context, documentID, resharerID string, level models.ShareLevel, opts IssueOptions) (*IssuedToken, error) {
	entry := &models.AuditEntry{DocumentID: documentID, ActorID: resharerID, Action: models.ActionReshare}
	var issued *IssuedToken
	err := m.run(ctx, entry, func(ctx context.Context, u *unit) error {
		mapped, err := models.MapShareLevel(level)
		if err != nil {
			return err
		}
		doc, held, _, err := u.resolve(ctx, entry, documentID, resharerID)
		if err != nil {
			return err
		}
		if !held.Satisfies(models.LevelWrite) {
			return deny(common.ErrInsufficientPermission, "insufficient_level")
		}
		if mapped.Level > held {
			return deny(common.ErrInsufficientPermission, "exceeds_own_level")
		}
		issued, err = m.issue(ctx, u, entry, doc, resharerID, level, opts, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

func (m *ShareTokenManager) issue(ctx context.Context, u *unit, entry *models.AuditEntry, doc *models.Document, issuerID string, level models.ShareLevel, opts IssueOptions, reshared bool) (*IssuedToken, error) {
	mapped, err := models.MapShareLevel(level)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	if err := opts.validate(now); err != nil {
		return nil, err
	}

	secret, err := common.MakeRandHexString(tokenSize)
	if err != nil {
		return nil, fmt.Errorf("error generating share token: %w", err)
	}

	tok := &models.ShareToken{
		ID:              uuid.NewString(),
		TokenHash:       hashToken(secret),
		DocumentID:      doc.ID,
		IssuedBy:        issuerID,
		ShareLevel:      level,
		PermissionLevel: mapped.Level,
		Reshared:        reshared,
		IsActive:        true,
		CreatedAt:       now,
	}
	if opts.ExpiresAt != nil {
		exp := opts.ExpiresAt.UTC()
		tok.ExpiresAt = &exp
	}
	if opts.MaxRedemptions != nil {
		n := *opts.MaxRedemptions
		tok.MaxRedemptions = &n
	}
	if err := u.repos.ShareTokens().Create(ctx, tok); err != nil {
		return nil, fmt.Errorf("error storing share token: %w", err)
	}

	entry.Context["token_id"] = tok.ID
	entry.Context["share_level"] = string(level)
	entry.Context["permission_level"] = mapped.Level.String()
	entry.Context["reshared"] = strconv.FormatBool(reshared)
	if mapped.CanComment {
		entry.Context["comment"] = "true"
	}
	if tok.MaxRedemptions != nil {
		entry.Context["max_redemptions"] = strconv.Itoa(*tok.MaxRedemptions)
	}
	if tok.ExpiresAt != nil {
		entry.Context["expires_at"] = tok.ExpiresAt.Format(time.RFC3339)
	}
	return &IssuedToken{Token: secret, ShareToken: tok}, nil
}

// Redeem exchanges token for a grant on its document. The redemption count,
// the grant and the audit record commit together with the token row locked,
// so a capped token is never redeemed more often than its cap. An existing
// higher grant is never lowered.
func (m *ShareTokenManager) Redeem(ctx context.Context, token, redeemerID string) (*Redemption, error) {
	entry := &models.AuditEntry{ActorID: redeemerID, Action: models.ActionRedeem}
	var out *Redemption
	err := m.run(ctx, entry, func(ctx context.Context, u *unit) error {
		if redeemerID == "" {
			return fmt.Errorf("%w: redeemer is required", common.ErrValidation)
		}
		if err := m.throttle(ctx, redeemerID); err != nil {
			return err
		}

		tok, err := u.repos.ShareTokens().GetByHashForUpdate(ctx, hashToken(token))
		if errors.Is(err, common.ErrNotFound) {
			return deny(common.ErrInvalidToken, "unknown_token")
		}
		if err != nil {
			return err
		}
		entry.DocumentID = tok.DocumentID
		entry.Context["token_id"] = tok.ID

		doc, err := u.repos.Documents().Get(ctx, tok.DocumentID)
		if err != nil {
			return err
		}
		switch {
		case doc.Deleted():
			return deny(common.ErrInvalidToken, "document_deleted")
		case !tok.IsActive:
			return deny(common.ErrInvalidToken, "token_inactive")
		case tok.Expired(m.now()):
			return deny(common.ErrTokenExpired, "token_expired")
		case tok.Exhausted():
			return deny(common.ErrRedemptionLimit, "redemption_limit")
		}

		count, err := u.repos.ShareTokens().IncrementRedemptions(ctx, tok.ID)
		if errors.Is(err, common.ErrRedemptionLimit) {
			return deny(common.ErrRedemptionLimit, "redemption_limit")
		}
		if err != nil {
			return fmt.Errorf("error counting redemption: %w", err)
		}

		granted := models.LevelShare
		if doc.OwnerID != redeemerID {
			g, err := u.permissions.raise(ctx, doc.ID, redeemerID, tok.PermissionLevel, tok.IssuedBy)
			if err != nil {
				return err
			}
			granted = g.Level
		}

		entry.Context["share_level"] = string(tok.ShareLevel)
		entry.Context["permission_level"] = tok.PermissionLevel.String()
		entry.Context["granted_level"] = granted.String()
		entry.Context["redemption_count"] = strconv.Itoa(count)
		entry.Context["reshared"] = strconv.FormatBool(tok.Reshared)
		// Commenting is not a grant level; it lives only in the audit trail.
		if mapped, err := models.MapShareLevel(tok.ShareLevel); err == nil && mapped.CanComment {
			entry.Context["comment"] = "true"
		}
		out = &Redemption{DocumentID: doc.ID, Level: granted}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// throttle counts one redemption attempt. A limiter backend failure lets the
// attempt through.
func (m *ShareTokenManager) throttle(ctx context.Context, redeemerID string) error {
	if m.limiter == nil || m.cfg.RedeemLimit <= 0 {
		return nil
	}
	d, err := m.limiter.Allow(ctx, "redeem:"+redeemerID, m.cfg.RedeemLimit, m.cfg.RedeemWindow)
	if err != nil {
		m.log.Warn(ctx, "rate limiter unavailable", "error", err)
		return nil
	}
	if !d.Allowed {
		return deny(common.ErrRateLimited, "rate_limited")
	}
	return nil
}

// Deactivate makes a token permanently inert. Only its issuer, the document
// owner or an administrator may do so. It is recorded as Revoke.
func (m *ShareTokenManager) Deactivate(ctx context.Context, tokenID, actorID string) error {
	entry := &models.AuditEntry{ActorID: actorID, Action: models.ActionRevoke,
		Context: map[string]string{"token_id": tokenID}}
	return m.run(ctx, entry, func(ctx context.Context, u *unit) error {
		tok, err := u.repos.ShareTokens().Get(ctx, tokenID)
		if errors.Is(err, common.ErrNotFound) {
			return deny(common.ErrInvalidToken, "unknown_token")
		}
		if err != nil {
			return err
		}
		entry.DocumentID = tok.DocumentID

		doc, err := u.repos.Documents().Get(ctx, tok.DocumentID)
		if err != nil {
			return err
		}
		if actorID != tok.IssuedBy && actorID != doc.OwnerID && !u.audit.IsAdministrator(actorID) {
			return deny(common.ErrAccessDenied, "not_issuer_or_owner")
		}
		if !tok.IsActive {
			entry.Context["already_inactive"] = "true"
			return nil
		}
		if err := u.repos.ShareTokens().Deactivate(ctx, tok.ID); err != nil {
			return fmt.Errorf("error deactivating share token: %w", err)
		}
		return nil
	})
}
