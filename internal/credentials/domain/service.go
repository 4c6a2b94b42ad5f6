// Package domain contains the student dashboard: listing the connected
// account's active credentials as display cards.
package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/pinning"
	"github.com/pendergraft/verichain/internal/session"
)

// ProfileLoadError is the profile name shown when a student ID profile
// cannot be resolved.
const ProfileLoadError = "Error loading data"

// Session is the part of the application session the dashboard needs.
type Session interface {
	Require(view session.View) error
	Account() string
	Ledger() ledger.Ledger
}

// ProfileFetcher resolves pinned student profiles.
type ProfileFetcher interface {
	FetchStudentProfile(ctx context.Context, ref string) (*pinning.StudentProfile, error)
}

// Card is one credential as displayed on the student dashboard.
type Card struct {
	Title          string                  `json:"title"`
	CredentialType ledger.CredentialType   `json:"credentialType"`
	DocumentHash   string                  `json:"documentHash"`
	MetadataCID    string                  `json:"metadataCid,omitempty"`
	IssueDate      time.Time               `json:"issueDate"`
	Profile        *pinning.StudentProfile `json:"profile,omitempty"`
}

// Service defines the student dashboard operations.
type Service interface {
	Me(ctx context.Context) (session.Status, error)
	MyCredentials(ctx context.Context) ([]Card, error)
}

type service struct {
	sess     Session
	status   func() session.Status
	profiles ProfileFetcher
	logger   *slog.Logger
}

// NewService creates a new student dashboard service. status reports the
// session snapshot returned by Me.
func NewService(sess Session, status func() session.Status, profiles ProfileFetcher, logger *slog.Logger) *service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{sess: sess, status: status, profiles: profiles, logger: logger}
}

// Me returns the connected account and its views.
func (s *service) Me(ctx context.Context) (session.Status, error) {
	if err := s.sess.Require(session.ViewStudent); err != nil {
		return session.Status{}, err
	}
	return s.status(), nil
}

// MyCredentials lists the active credentials of the connected account.
// Profile resolution failures never fail the listing.
func (s *service) MyCredentials(ctx context.Context) ([]Card, error) {
	if err := s.sess.Require(session.ViewStudent); err != nil {
		return nil, err
	}

	creds, err := s.sess.Ledger().MyCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	active := ledger.ActiveOnly(creds)

	cards := make([]Card, len(active))
	var wg sync.WaitGroup
	for i, c := range active {
		cards[i] = Card{
			Title:          c.CredentialType.Title(),
			CredentialType: c.CredentialType,
			DocumentHash:   c.DocumentHash,
			MetadataCID:    c.MetadataCID,
			IssueDate:      c.IssueDate,
		}
		if c.CredentialType != ledger.StudentID || !c.HasMetadata() {
			continue
		}
		wg.Add(1)
		go func(card *Card) {
			defer wg.Done()
			card.Profile = s.loadProfile(ctx, card.MetadataCID)
		}(&cards[i])
	}
	wg.Wait()

	return cards, nil
}

func (s *service) loadProfile(ctx context.Context, ref string) *pinning.StudentProfile {
	if s.profiles == nil {
		return &pinning.StudentProfile{Name: ProfileLoadError, Type: pinning.StudentProfileType}
	}
	p, err := s.profiles.FetchStudentProfile(ctx, ref)
	if err != nil {
		s.logger.Warn("student profile unavailable", "cid", ref, "error", err)
		return &pinning.StudentProfile{Name: ProfileLoadError, Type: pinning.StudentProfileType}
	}
	return p
}
