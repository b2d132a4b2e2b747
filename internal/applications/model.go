package applications

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage enumerates the pipeline positions an application can occupy.
type Stage string

const (
	StageWishlist  Stage = "Wishlist"
	StageApplied   Stage = "Applied"
	StageOA        Stage = "OA"
	StageInterview Stage = "Interview"
	StageOffer     Stage = "Offer"
	StageRejected  Stage = "Rejected"
)

// DefaultStage is assigned when a new application omits its stage.
const DefaultStage = StageWishlist

var stageOrder = [...]Stage{
	StageWishlist,
	StageApplied,
	StageOA,
	StageInterview,
	StageOffer,
	StageRejected,
}

// Stages returns the closed stage set in pipeline order.
func Stages() []Stage {
	stages := make([]Stage, len(stageOrder))
	copy(stages, stageOrder[:])
	return stages
}

// ParseStage validates raw input against the closed stage set.
func ParseStage(rawInput string) (Stage, error) {
	candidate := Stage(strings.TrimSpace(rawInput))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, rawInput)
	}
	return candidate, nil
}

// Valid reports whether the stage belongs to the closed set.
func (s Stage) Valid() bool {
	for _, stage := range stageOrder {
		if s == stage {
			return true
		}
	}
	return false
}

// Terminal reports whether the stage closes the application.
func (s Stage) Terminal() bool {
	return s == StageOffer || s == StageRejected
}

func (s Stage) String() string {
	return string(s)
}

const maxIdentifierLength = 190

var (
	// ErrInvalidUserID indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("applications: invalid user id")
	// ErrInvalidApplicationID indicates that an application identifier is empty or exceeds storage bounds.
	ErrInvalidApplicationID = errors.New("applications: invalid application id")
	// ErrInvalidStage indicates a stage outside the closed set.
	ErrInvalidStage = errors.New("applications: invalid stage")
	// ErrNotFound indicates that no application matched the owner and identifier.
	ErrNotFound = errors.New("applications: application not found")
)

// UserID represents a validated owner identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// ApplicationID represents a validated application identifier.
type ApplicationID string

// NewApplicationID validates raw input and returns an ApplicationID.
func NewApplicationID(rawInput string) (ApplicationID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidApplicationID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidApplicationID, maxIdentifierLength)
	}
	return ApplicationID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ApplicationID) String() string {
	return string(id)
}

// Application is one tracked job application owned by exactly one user.
type Application struct {
	ID           string     `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	UserID       string     `gorm:"column:user_id;size:190;not null;index:idx_applications_user_updated,priority:1" json:"-"`
	Company      string     `gorm:"column:company;size:100;not null" json:"company"`
	RoleTitle    string     `gorm:"column:role_title;size:120;not null" json:"roleTitle"`
	Location     string     `gorm:"column:location;size:120;not null;default:''" json:"location"`
	JobURL       string     `gorm:"column:job_url;size:500;not null;default:''" json:"jobUrl"`
	Stage        Stage      `gorm:"column:stage;size:32;not null;default:'Wishlist'" json:"stage"`
	AppliedDate  *time.Time `gorm:"column:applied_date" json:"appliedDate"`
	FollowUpDate *time.Time `gorm:"column:follow_up_date" json:"followUpDate"`
	Notes        string     `gorm:"column:notes;type:text;not null;default:''" json:"notes"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null;autoUpdateTime:false;index:idx_applications_user_updated,priority:2" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Application) TableName() string {
	return "applications"
}
