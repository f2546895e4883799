// Package assignments routes grievances to municipal departments and tracks
// the work assigned to them.
package assignments

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/emilythestrangee/grievance-portal/backend/internal/apperr"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

// Filter narrows ListAssignments. Zero values mean no constraint.
type Filter struct {
	DepartmentID int    `form:"departmentId"`
	Status       string `form:"status"`
}

type Service struct {
	db   *gorm.DB
	logg logrus.FieldLogger
}

func NewService(db *gorm.DB, logg logrus.FieldLogger) *Service {
	return &Service{db: db, logg: logg}
}

// ListDepartments returns departments, optionally limited to one municipality.
func (s *Service) ListDepartments(ctx context.Context, municipality string) ([]models.Department, error) {
	departments := []models.Department{}
	q := s.db.WithContext(ctx).Order("municipality ASC, name ASC")
	if m := strings.TrimSpace(municipality); m != "" && m != "all" {
		q = q.Where("municipality = ?", m)
	}
	if err := q.Find(&departments).Error; err != nil {
		return nil, apperr.Internal(err, "failed to fetch departments")
	}
	return departments, nil
}

// CreateDepartment adds a department to the admin's municipality unless the
// request names another one.
func (s *Service) CreateDepartment(ctx context.Context, caller *models.Caller, req models.DepartmentRequest) (*models.Department, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("admin access required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.InvalidInput("department name is required")
	}
	municipality := strings.TrimSpace(req.Municipality)
	if municipality == "" {
		municipality = caller.Municipality
	}

	dept := models.Department{
		Name:         name,
		Municipality: municipality,
		Categories:   normalizeCategories(req.Categories),
	}
	if err := s.db.WithContext(ctx).Create(&dept).Error; err != nil {
		return nil, apperr.FromStore(err, "department")
	}
	return &dept, nil
}

// RouteCategory finds the department of a municipality that handles category.
func (s *Service) RouteCategory(ctx context.Context, municipality, category string) (*models.Department, error) {
	var dept models.Department
	err := s.db.WithContext(ctx).
		Where("municipality = ? AND ? = ANY(categories)", municipality, strings.ToLower(category)).
		Order("id ASC").
		First(&dept).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.InvalidInput("no department in %s handles category %q", municipality, category)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to route grievance")
	}
	return &dept, nil
}

// Assign hands a grievance to a department. Without an explicit department
// the grievance is routed by its category.
func (s *Service) Assign(ctx context.Context, caller *models.Caller, grievanceID int, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("admin access required")
	}

	var g models.Grievance
	if err := s.db.WithContext(ctx).First(&g, grievanceID).Error; err != nil {
		return nil, apperr.FromStore(err, "grievance")
	}

	var dept *models.Department
	if req.DepartmentID != nil {
		dept = &models.Department{}
		if err := s.db.WithContext(ctx).First(dept, *req.DepartmentID).Error; err != nil {
			return nil, apperr.FromStore(err, "department")
		}
		if dept.Municipality != g.Municipality {
			return nil, apperr.InvalidInput("department %q does not serve %s", dept.Name, g.Municipality)
		}
	} else {
		routed, err := s.RouteCategory(ctx, g.Municipality, g.Category)
		if err != nil {
			return nil, err
		}
		dept = routed
	}

	if err := s.checkAssignee(ctx, req.AssigneeID); err != nil {
		return nil, err
	}

	a := models.Assignment{
		GrievanceID:  g.ID,
		DepartmentID: dept.ID,
		AssigneeID:   req.AssigneeID,
		Notes:        strings.TrimSpace(req.Notes),
		Status:       models.AssignmentAssigned,
	}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, apperr.FromStore(err, "assignment")
	}
	s.logg.WithFields(logrus.Fields{"grievanceId": g.ID, "departmentId": dept.ID}).Info("grievance assigned")
	return s.get(ctx, a.ID)
}

// ListAssignments returns the assignments of grievances in the admin's municipality.
func (s *Service) ListAssignments(ctx context.Context, caller *models.Caller, f Filter) ([]models.Assignment, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("admin access required")
	}

	q := s.db.WithContext(ctx).
		Joins("JOIN grievances ON grievances.id = assignments.grievance_id").
		Where("grievances.municipality = ?", caller.Municipality)
	if f.DepartmentID > 0 {
		q = q.Where("assignments.department_id = ?", f.DepartmentID)
	}
	if st := strings.TrimSpace(f.Status); st != "" && st != "all" {
		status, err := models.ParseAssignmentStatus(st)
		if err != nil {
			return nil, apperr.InvalidInput("%s", err.Error())
		}
		q = q.Where("assignments.status = ?", status)
	}

	out := []models.Assignment{}
	err := q.Preload("Grievance").Preload("Department").
		Order("assignments.created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to fetch assignments")
	}
	return out, nil
}

// UpdateAssignment changes progress, assignee or notes.
func (s *Service) UpdateAssignment(ctx context.Context, caller *models.Caller, id int, req models.UpdateAssignmentRequest) (*models.Assignment, error) {
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden("admin access required")
	}

	var a models.Assignment
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, apperr.FromStore(err, "assignment")
	}

	updates := map[string]any{}
	if req.Status != nil {
		status, err := models.ParseAssignmentStatus(strings.TrimSpace(*req.Status))
		if err != nil {
			return nil, apperr.InvalidInput("%s", err.Error())
		}
		updates["status"] = status
	}
	if req.AssigneeID != nil {
		if err := s.checkAssignee(ctx, req.AssigneeID); err != nil {
			return nil, err
		}
		updates["assignee_id"] = *req.AssigneeID
	}
	if req.Notes != nil {
		updates["notes"] = strings.TrimSpace(*req.Notes)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&a).Updates(updates).Error; err != nil {
			return nil, apperr.Internal(err, "failed to update assignment")
		}
	}
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id int) (*models.Assignment, error) {
	var a models.Assignment
	if err := s.db.WithContext(ctx).Preload("Grievance").Preload("Department").First(&a, id).Error; err != nil {
		return nil, apperr.FromStore(err, "assignment")
	}
	return &a, nil
}

// checkAssignee requires assignees to be administrators.
func (s *Service) checkAssignee(ctx context.Context, assigneeID *int) error {
	if assigneeID == nil {
		return nil
	}
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "role").First(&user, *assigneeID).Error; err != nil {
		return apperr.FromStore(err, "assignee")
	}
	if !user.IsAdmin() {
		return apperr.InvalidInput("assignee must be an administrator")
	}
	return nil
}

func normalizeCategories(in []string) pq.StringArray {
	out := pq.StringArray{}
	seen := map[string]bool{}
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
