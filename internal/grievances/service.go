// Package grievances holds the grievance and comment workflows: filtered
// listings, the status lifecycle, admin triage and public statistics.
package grievances

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/logger"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
	"github.com/emilythestrangee/grievance-portal/backend/internal/votes"
)

// NotifyTimeout bounds one status notification, which runs after the update
// request has returned.
const NotifyTimeout = 10 * time.Second

// StatsCache stores per-municipality status counts.
type StatsCache interface {
	Get(ctx context.Context, municipality string) (*models.StatusStats, bool, error)
	Set(ctx context.Context, stats *models.StatusStats) error
	Invalidate(ctx context.Context, municipalities ...string) error
}

// Notifier tells an author their grievance changed status.
type Notifier interface {
	StatusChanged(ctx context.Context, author models.User, g models.Grievance, from models.Status) error
}

type Service struct {
	db       *gorm.DB
	votes    *votes.Store
	cache    StatsCache
	notifier Notifier
	logg     logrus.FieldLogger
	now      func() time.Time

	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

func NewService(db *gorm.DB, voteStore *votes.Store, cache StatsCache, notifier Notifier, logg logrus.FieldLogger) *Service {
	return &Service{
		db:       db,
		votes:    voteStore,
		cache:    cache,
		notifier: notifier,
		logg:     logg,
		now:      time.Now,

		notifyTimeout: NotifyTimeout,
	}
}

// List returns one page of grievances matching f and the total match count.
// A non-nil caller gets their own vote annotated on each grievance.
func (s *Service) List(ctx context.Context, f Filter, caller *models.Caller) (*Page, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}

	var total int64
	if err := applyFilter(s.db.WithContext(ctx).Model(&models.Grievance{}), f).Count(&total).Error; err != nil {
		return nil, apperr.Internal(err, "failed to count grievances")
	}

	grievances := []models.Grievance{}
	err = applyFilter(s.db.WithContext(ctx).Model(&models.Grievance{}), f).
		Preload("Author").
		Order(orderClause(f.SortBy)).
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&grievances).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to fetch grievances")
	}

	if err := s.annotateGrievances(ctx, grievances, caller); err != nil {
		return nil, err
	}
	return &Page{Grievances: grievances, Total: total}, nil
}

// AdminQueue lists matching grievances ordered by priority score. Admins see
// their own municipality unless the filter names another.
func (s *Service) AdminQueue(ctx context.Context, f Filter, caller *models.Caller) (*Page, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("admin access required")
	}
	if strings.TrimSpace(f.Municipality) == "" {
		f.Municipality = caller.Municipality
	}
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}

	var total int64
	if err := applyFilter(s.db.WithContext(ctx).Model(&models.Grievance{}), f).Count(&total).Error; err != nil {
		return nil, apperr.Internal(err, "failed to count grievances")
	}

	now := s.now()
	grievances := []models.Grievance{}
	err = applyFilter(s.db.WithContext(ctx).Model(&models.Grievance{}), f).
		Preload("Author").
		Clauses(priorityOrder(now)).
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&grievances).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to fetch grievances")
	}

	ScorePriority(grievances, now)
	if err := s.annotateGrievances(ctx, grievances, caller); err != nil {
		return nil, err
	}
	return &Page{Grievances: grievances, Total: total}, nil
}

// Get loads one grievance with its author.
func (s *Service) Get(ctx context.Context, id int, caller *models.Caller) (*models.Grievance, error) {
	var g models.Grievance
	if err := s.db.WithContext(ctx).Preload("Author").First(&g, id).Error; err != nil {
		return nil, apperr.FromStore(err, "grievance")
	}
	one := []models.Grievance{g}
	if err := s.annotateGrievances(ctx, one, caller); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// ListByAuthor returns a user's grievances, newest first.
func (s *Service) ListByAuthor(ctx context.Context, authorID int, caller *models.Caller) ([]models.Grievance, error) {
	grievances := []models.Grievance{}
	err := s.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order(orderClause(SortNewest)).
		Find(&grievances).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to fetch user grievances")
	}
	if err := s.annotateGrievances(ctx, grievances, caller); err != nil {
		return nil, err
	}
	return grievances, nil
}

// Create files a new grievance. Authors may only open it as pending or urgent.
func (s *Service) Create(ctx context.Context, caller *models.Caller, req models.CreateGrievanceRequest) (*models.Grievance, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("authentication required")
	}

	status := models.StatusPending
	if strings.TrimSpace(req.Status) != "" {
		st, err := models.ParseStatus(req.Status)
		if err != nil {
			return nil, apperr.InvalidInput("%s", err.Error())
		}
		if !models.IsInitialStatus(st) {
			return nil, apperr.InvalidInput("new grievances must be %q or %q", models.StatusPending, models.StatusUrgent)
		}
		status = st
	}

	municipality := strings.TrimSpace(req.Municipality)
	if municipality == "" {
		municipality = caller.Municipality
	}
	if municipality == "" {
		return nil, apperr.InvalidInput("municipality is required")
	}

	g := models.Grievance{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Category:     strings.ToLower(strings.TrimSpace(req.Category)),
		Municipality: municipality,
		Location:     strings.TrimSpace(req.Location),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ImageURL:     strings.TrimSpace(req.ImageURL),
		AuthorID:     caller.UserID,
		Status:       status,
	}
	if g.Title == "" || g.Description == "" || g.Category == "" {
		return nil, apperr.InvalidInput("title, description and category are required")
	}

	if err := s.db.WithContext(ctx).Create(&g).Error; err != nil {
		return nil, apperr.FromStore(err, "grievance")
	}
	s.invalidateStats(ctx, g.Municipality)

	return s.Get(ctx, g.ID, caller)
}

// Update applies a partial update. Authors edit content; only admins change
// status, and only along the transition table.
func (s *Service) Update(ctx context.Context, caller *models.Caller, id int, req models.UpdateGrievanceRequest) (*models.Grievance, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("authentication required")
	}

	var (
		g          models.Grievance
		fromStatus models.Status
		toStatus   models.Status
		changed    bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Author").First(&g, id).Error; err != nil {
			return apperr.FromStore(err, "grievance")
		}
		if !caller.Owns(g.AuthorID) && !caller.IsAdmin() {
			return apperr.Forbidden("you can only edit your own grievances")
		}
		if req.HasContent() && !caller.Owns(g.AuthorID) {
			return apperr.Forbidden("only the author can edit grievance content")
		}

		updates := map[string]any{}
		if req.Title != nil {
			if strings.TrimSpace(*req.Title) == "" {
				return apperr.InvalidInput("title cannot be empty")
			}
			updates["title"] = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			if strings.TrimSpace(*req.Description) == "" {
				return apperr.InvalidInput("description cannot be empty")
			}
			updates["description"] = strings.TrimSpace(*req.Description)
		}
		if req.Category != nil {
			if strings.TrimSpace(*req.Category) == "" {
				return apperr.InvalidInput("category cannot be empty")
			}
			updates["category"] = strings.ToLower(strings.TrimSpace(*req.Category))
		}
		if req.Location != nil {
			updates["location"] = strings.TrimSpace(*req.Location)
		}
		if req.Latitude != nil {
			updates["latitude"] = *req.Latitude
		}
		if req.Longitude != nil {
			updates["longitude"] = *req.Longitude
		}
		if req.ImageURL != nil {
			updates["image_url"] = strings.TrimSpace(*req.ImageURL)
		}

		if req.Status != nil {
			if !caller.IsAdmin() {
				return apperr.Forbidden("only administrators can change status")
			}
			to, err := models.ParseStatus(*req.Status)
			if err != nil {
				return apperr.InvalidInput("%s", err.Error())
			}
			if !models.CanTransition(g.Status, to) {
				return apperr.InvalidInput("cannot move grievance from %q to %q", g.Status, to)
			}
			if to != g.Status {
				fromStatus = g.Status
				toStatus = to
				changed = true
				updates["status"] = to
			}
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&g).Updates(updates).Error; err != nil {
			return apperr.Internal(err, "failed to update grievance")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		g.Status = toStatus
		s.invalidateStats(ctx, g.Municipality)
		if s.notifier != nil {
			s.notifyStatusChanged(ctx, g, fromStatus)
		}
	}
	return s.Get(ctx, id, caller)
}

// notifyStatusChanged sends the author notification in the background so a slow
// provider never holds up the update.
func (s *Service) notifyStatusChanged(ctx context.Context, g models.Grievance, from models.Status) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.notifier.StatusChanged(ctx, g.Author, g, from); err != nil {
			logger.LogError(s.logg, "grievances", "notifyStatusChanged", map[string]any{"grievanceId": g.ID}, err)
		}
	}()
}

// Wait blocks until in-flight notifications have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// Delete removes a grievance with its comments, votes and assignments.
func (s *Service) Delete(ctx context.Context, caller *models.Caller, id int) error {
	if caller == nil {
		return apperr.Unauthorized("authentication required")
	}

	var g models.Grievance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&g, id).Error; err != nil {
			return apperr.FromStore(err, "grievance")
		}
		if !caller.Owns(g.AuthorID) && !caller.IsAdmin() {
			return apperr.Forbidden("you can only delete your own grievances")
		}

		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("grievance_id = ?", id)
		deletes := []func() error{
			func() error { return tx.Where("comment_id IN (?)", commentIDs).Delete(&models.Vote{}).Error },
			func() error { return tx.Where("grievance_id = ?", id).Delete(&models.Vote{}).Error },
			func() error { return tx.Where("grievance_id = ?", id).Delete(&models.Comment{}).Error },
			func() error { return tx.Where("grievance_id = ?", id).Delete(&models.Assignment{}).Error },
			func() error { return tx.Delete(&models.Grievance{}, id).Error },
		}
		for _, del := range deletes {
			if err := del(); err != nil {
				return apperr.Internal(err, "failed to delete grievance")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateStats(ctx, g.Municipality)
	return nil
}

// Stats counts grievances per status, served from the cache when possible.
func (s *Service) Stats(ctx context.Context, municipality string) (*models.StatusStats, error) {
	municipality = normalizeAll(municipality)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, municipality)
		if err != nil {
			logger.LogError(s.logg, "grievances", "Stats", map[string]any{"municipality": municipality}, err)
		} else if ok {
			return cached, nil
		}
	}

	var rows []struct {
		Status models.Status
		Count  int64
	}
	q := s.db.WithContext(ctx).Model(&models.Grievance{}).Select("status, COUNT(*) AS count")
	if municipality != "" {
		q = q.Where("municipality = ?", municipality)
	}
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, apperr.Internal(err, "failed to compute statistics")
	}

	stats := &models.StatusStats{
		Municipality: municipality,
		Counts:       make(map[models.Status]int64, len(models.AllStatuses)),
	}
	for _, st := range models.AllStatuses {
		stats.Counts[st] = 0
	}
	for _, row := range rows {
		stats.Counts[row.Status] = row.Count
		stats.Total += row.Count
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			logger.LogError(s.logg, "grievances", "Stats", map[string]any{"municipality": municipality}, err)
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, municipality string) {
	if s.cache == nil {
		return
	}
	// the all-municipalities entry is keyed by ""
	if err := s.cache.Invalidate(ctx, municipality, ""); err != nil {
		logger.LogError(s.logg, "grievances", "invalidateStats", map[string]any{"municipality": municipality}, err)
	}
}

func (s *Service) annotateGrievances(ctx context.Context, gs []models.Grievance, caller *models.Caller) error {
	if caller == nil || len(gs) == 0 {
		return nil
	}
	ids := make([]int, len(gs))
	for i := range gs {
		ids[i] = gs[i].ID
	}
	kinds, err := s.votes.KindsByGrievance(ctx, s.db, caller.UserID, ids)
	if err != nil {
		return err
	}
	for i := range gs {
		if kind, ok := kinds[gs[i].ID]; ok {
			k := kind
			gs[i].UserVote = &k
		}
	}
	return nil
}

func (s *Service) grievanceExists(ctx context.Context, id int) error {
	err := s.db.WithContext(ctx).Select("id").Take(&models.Grievance{}, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("grievance not found")
	}
	if err != nil {
		return apperr.Internal(err, "failed to load grievance")
	}
	return nil
}
