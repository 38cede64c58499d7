package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository"

	"go.uber.org/zap"
)

type ReservationRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Guests int    `json:"guests"`
}

type ReviewRequest struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SubmissionService stores what customers send without a payment gate.
type SubmissionService struct {
	gateway repository.Gateway
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
}

func NewSubmissionService(g repository.Gateway, loc *time.Location, logger *zap.Logger) *SubmissionService {
	if loc == nil {
		loc = time.UTC
	}
	return &SubmissionService{gateway: g, loc: loc, now: time.Now, log: logger.Named("submissions")}
}

func (s *SubmissionService) CreateReservation(ctx context.Context, req ReservationRequest) (*domain.Reservation, error) {
	r := &domain.Reservation{
		Name:   strings.TrimSpace(req.Name),
		Phone:  strings.TrimSpace(req.Phone),
		Date:   strings.TrimSpace(req.Date),
		Time:   strings.TrimSpace(req.Time),
		Guests: req.Guests,
		Status: domain.ReservationPending,
	}
	if r.Name == "" || r.Phone == "" || r.Date == "" || r.Time == "" {
		return nil, fmt.Errorf("%w: name, phone, date and time are required", ErrValidation)
	}
	if r.Guests < 1 {
		return nil, fmt.Errorf("%w: at least one guest is required", ErrValidation)
	}
	slot, err := r.Slot(s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable date or time", ErrValidation)
	}
	if slot.Before(s.now()) {
		return nil, fmt.Errorf("%w: reservation is in the past", ErrValidation)
	}

	if err := s.gateway.Insert(ctx, r); err != nil {
		s.log.Error("reservation insert failed", zap.Error(err))
		return nil, err
	}
	return r, nil
}

func (s *SubmissionService) CreateReview(ctx context.Context, req ReviewRequest) (*domain.Review, error) {
	r := &domain.Review{
		Name:   strings.TrimSpace(req.Name),
		Rating: req.Rating,
		Review: strings.TrimSpace(req.Review),
	}
	if r.Name == "" || r.Review == "" {
		return nil, fmt.Errorf("%w: name and review are required", ErrValidation)
	}
	if r.Rating < 1 || r.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if err := s.gateway.Insert(ctx, r); err != nil {
		s.log.Error("review insert failed", zap.Error(err))
		return nil, err
	}
	return r, nil
}

func (s *SubmissionService) CreateContactMessage(ctx context.Context, req ContactRequest) (*domain.ContactMessage, error) {
	c := &domain.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
		Status:  domain.ContactPending,
	}
	if c.Name == "" || c.Email == "" || c.Message == "" {
		return nil, fmt.Errorf("%w: name, email and message are required", ErrValidation)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if err := s.gateway.Insert(ctx, c); err != nil {
		s.log.Error("contact insert failed", zap.Error(err))
		return nil, err
	}
	return c, nil
}
