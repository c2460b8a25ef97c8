package api

import (
	"github.com/google/uuid"

	"github.com/lexvault/lexvault/internal/models"
)

// SignupRequest is the payload for POST /api/v1/auth/signup
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the payload for POST /api/v1/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the session token and the user it belongs to
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the public shape of a user
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// ChatRequest is the payload for POST /api/v1/chat
type ChatRequest struct {
	Message        string     `json:"message" binding:"required,max=10000"`
	ConversationID *uuid.UUID `json:"conversationId"`
}

// ChatResponse carries the assistant's answer and its evidence
type ChatResponse struct {
	ConversationID uuid.UUID         `json:"conversationId"`
	Message        string            `json:"message"`
	Citations      []models.Citation `json:"citations"`
}

// ClauseAnalyzerRequest is the payload for the clause analyzer tool
type ClauseAnalyzerRequest struct {
	Text string `json:"text" binding:"required,max=10000"`
}

// ComplianceCheckerRequest is the payload for the compliance checker tool
type ComplianceCheckerRequest struct {
	Text         string `json:"text" binding:"required,max=10000"`
	Jurisdiction string `json:"jurisdiction" binding:"max=200"`
	Framework    string `json:"framework" binding:"max=200"`
}

// PrecedentFinderRequest is the payload for the precedent finder tool
type PrecedentFinderRequest struct {
	Query string `json:"query" binding:"required,max=10000"`
}

// NegotiationCoachRequest is the payload for the negotiation coach tool
type NegotiationCoachRequest struct {
	ClauseText string `json:"clauseText" binding:"required,max=10000"`
	Position   string `json:"position" binding:"required,oneof=buyer seller neutral"`
}
