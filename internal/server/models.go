package server

import (
	"time"

	"github.com/campusops/lostfound/internal/store"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// RegisterRequest represents the account signup payload. StudentID is
// required for student signups and ignored for admins.
type RegisterRequest struct {
	StudentID  string `json:"studentId"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// LoginRequest represents the login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token plus the authenticated user.
type TokenResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	StudentID   string     `json:"studentId,omitempty"`
	FirstName   string     `json:"firstName,omitempty"`
	MiddleName  string     `json:"middleName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserResponse(u store.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		StudentID:   u.StudentID,
		FirstName:   u.FirstName,
		MiddleName:  u.MiddleName,
		LastName:    u.LastName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// UpdateUserRequest carries optional account edits. A password change
// requires the current password.
type UpdateUserRequest struct {
	FirstName       *string `json:"firstName"`
	MiddleName      *string `json:"middleName"`
	LastName        *string `json:"lastName"`
	StudentID       *string `json:"studentId"`
	Email           *string `json:"email"`
	Role            *string `json:"role"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

// CreateItemRequest represents a new lost/found report. OccurredOn is a
// YYYY-MM-DD date.
type CreateItemRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	OccurredOn  string `json:"occurredOn"`
}

// ItemResponse is the public view of a report.
type ItemResponse struct {
	ID             int64      `json:"id"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	OccurredOn     *string    `json:"occurredOn,omitempty"`
	ReportedAt     time.Time  `json:"reportedAt"`
	Status         string     `json:"status"`
	PhotoURL       string     `json:"photoUrl,omitempty"`
	ReporterUserID *int64     `json:"reporterUserId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func toItemResponse(it store.Item) ItemResponse {
	var occurred *string
	if it.OccurredOn != nil {
		s := it.OccurredOn.Format("2006-01-02")
		occurred = &s
	}
	return ItemResponse{
		ID:             it.ID,
		Type:           it.Type,
		Title:          it.Title,
		Description:    it.Description,
		Location:       it.Location,
		OccurredOn:     occurred,
		ReportedAt:     it.ReportedAt,
		Status:         it.Status,
		PhotoURL:       it.PhotoURL,
		ReporterUserID: it.ReporterUserID,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

func toItemResponses(items []store.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

// UpdateItemRequest carries optional admin edits.
type UpdateItemRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	OccurredOn  *string `json:"occurredOn"`
	Status      *string `json:"status"`
}

// SuggestionResponse is one ranked match suggestion.
type SuggestionResponse struct {
	LostItemID  int64         `json:"lostItemId"`
	FoundItemID int64         `json:"foundItemId"`
	Score       float64       `json:"score"`
	Item        *ItemResponse `json:"item,omitempty"`
}

// MatchResponse is the public view of a match row.
type MatchResponse struct {
	ID          int64     `json:"id"`
	LostItemID  int64     `json:"lostItemId"`
	FoundItemID int64     `json:"foundItemId"`
	Score       float64   `json:"score"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toMatchResponse(m store.Match) MatchResponse {
	return MatchResponse{
		ID:          m.ID,
		LostItemID:  m.LostItemID,
		FoundItemID: m.FoundItemID,
		Score:       m.Score,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
}

// CreateMatchRequest links a lost and a found item manually.
type CreateMatchRequest struct {
	LostItemID  int64    `json:"lostItemId"`
	FoundItemID int64    `json:"foundItemId"`
	Score       *float64 `json:"score"`
}

// ClaimRequest opens an ownership claim on a found item.
type ClaimRequest struct {
	ItemID  int64  `json:"itemId"`
	Message string `json:"message"`
}

// ClaimDecisionRequest carries an admin verdict on a claim.
type ClaimDecisionRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
}

// ClaimResponse is the public view of a claim.
type ClaimResponse struct {
	ID              int64      `json:"id"`
	ItemID          int64      `json:"itemId"`
	ClaimantUserID  int64      `json:"claimantUserId"`
	Status          string     `json:"status"`
	Message         string     `json:"message,omitempty"`
	AdminNotes      string     `json:"adminNotes,omitempty"`
	AdminVerifierID *int64     `json:"adminVerifierId,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func toClaimResponse(c store.Claim) ClaimResponse {
	return ClaimResponse{
		ID:              c.ID,
		ItemID:          c.ItemID,
		ClaimantUserID:  c.ClaimantUserID,
		Status:          c.Status,
		Message:         c.Message,
		AdminNotes:      c.AdminNotes,
		AdminVerifierID: c.AdminVerifierID,
		ApprovedAt:      c.ApprovedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// NotificationResponse is one in-app notification.
type NotificationResponse struct {
	ID        int64       `json:"id"`
	Kind      string      `json:"kind"`
	Title     string      `json:"title"`
	Body      string      `json:"body,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Status    string      `json:"status"`
	ReadAt    *time.Time  `json:"readAt,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func toNotificationResponse(n store.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:        n.ID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		Status:    n.Status,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
	if len(n.Data) > 0 {
		resp.Data = n.Data
	}
	return resp
}

// QRCodeResponse describes a printable code for a found item.
type QRCodeResponse struct {
	ID            int64      `json:"id"`
	ItemID        int64      `json:"itemId"`
	Code          string     `json:"code"`
	URL           string     `json:"url"`
	ScanCount     int64      `json:"scanCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastScannedAt *time.Time `json:"lastScannedAt,omitempty"`
}

// SocialPostResponse is the admin view of one queued announcement.
type SocialPostResponse struct {
	ID         int64      `json:"id"`
	ItemID     int64      `json:"itemId"`
	Platform   string     `json:"platform"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	ExternalID string     `json:"externalId,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	PostedAt   *time.Time `json:"postedAt,omitempty"`
}

func toSocialPostResponse(p store.SocialPost) SocialPostResponse {
	return SocialPostResponse{
		ID:         p.ID,
		ItemID:     p.ItemID,
		Platform:   p.Platform,
		Message:    p.Message,
		Status:     p.Status,
		ExternalID: p.ExternalID,
		Error:      p.Error,
		CreatedAt:  p.CreatedAt,
		PostedAt:   p.PostedAt,
	}
}
