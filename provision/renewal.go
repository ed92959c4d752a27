package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmcleod/vpnca/ca"
	"github.com/jmcleod/vpnca/store"
)

// ScanAndRenew inspects every issued server and client certificate and
// creates a fresh provisioning request for each one expiring within
// windowDays, notifying the subject's owner with the new redemption token.
// Subjects with a request already pending are skipped, so repeated scans
// before a renewal completes are harmless. Returns the number of renewal
// requests created.
func (s *Service) ScanAndRenew(ctx context.Context, windowDays int) (int, error) {
	if windowDays <= 0 {
		windowDays = s.renewWindowDays
	}
	deadline := time.Now().Add(time.Duration(windowDays) * 24 * time.Hour)
	renewed := 0

	serverInfos, err := s.authority.AllServerCertInfo(ctx)
	if err != nil {
		return renewed, fmt.Errorf("scanning server certificates: %w", err)
	}
	for _, info := range serverInfos {
		if info.ExpireDate.After(deadline) {
			continue
		}
		created, err := s.renewServer(ctx, info)
		if err != nil {
			return renewed, err
		}
		if created {
			renewed++
		}
	}

	clientInfos, err := s.authority.AllClientCertInfo(ctx)
	if err != nil {
		return renewed, fmt.Errorf("scanning client certificates: %w", err)
	}
	for _, info := range clientInfos {
		if info.ExpireDate.After(deadline) {
			continue
		}
		created, err := s.renewClient(ctx, info)
		if err != nil {
			return renewed, err
		}
		if created {
			renewed++
		}
	}
	return renewed, nil
}

func (s *Service) renewServer(ctx context.Context, info ca.CertInfo) (bool, error) {
	tokenString, err := s.RequestServer(ctx)
	if errors.Is(err, store.ErrConflict) {
		s.log.Info("server renewal already pending")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.Info("server certificate inside renewal window", "expires", info.ExpireDate)
	if err := s.notifier.ServerRenewalNotice(info.Email, tokenString); err != nil {
		s.log.Error("sending server renewal notice", "error", err)
	}
	return true, nil
}

func (s *Service) renewClient(ctx context.Context, info ca.CertInfo) (bool, error) {
	tokenString, err := s.RequestClient(ctx, info.CommonName, info.Email)
	if errors.Is(err, store.ErrConflict) || errors.Is(err, ErrInvalidClientName) {
		s.log.Info("skipping client renewal", "cert", info.Path, "reason", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.log.Info("client certificate inside renewal window",
		"client", info.CommonName, "expires", info.ExpireDate)
	if err := s.notifier.RenewalNotice(info.CommonName, info.Email, tokenString); err != nil {
		s.log.Error("sending client renewal notice", "client", info.CommonName, "error", err)
	}
	return true, nil
}
