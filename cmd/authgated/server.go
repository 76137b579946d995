package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	authgate "github.com/mwillfox/authgate"
	"github.com/mwillfox/authgate/middleware"
	"github.com/mwillfox/authgate/token"
)

type server struct {
	engine    *authgate.Engine
	validator token.Validator
	validate  *validator.Validate
	otpDigits int
	log       *zap.Logger
}

func newServer(engine *authgate.Engine, tokens token.Validator, otpDigits int, log *zap.Logger) *server {
	return &server{
		engine:    engine,
		validator: tokens,
		validate:  validator.New(),
		otpDigits: otpDigits,
		log:       log,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(attachClientIP)

	r.Get("/healthz", s.handleHealth)

	r.Post("/login", s.handleLogin)
	r.Post("/users/verify", s.handleVerifyUser)
	r.Post("/otp/verify", s.handleVerifyOTP)
	r.Post("/password/reset-token", s.handleResetToken)
	r.Post("/password/change", s.handleChangePassword)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ThrottleOTP(s.engine, emailFromBody))
		r.Post("/otp/generate", s.handleGenerateOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(s.validator))
		r.Post("/logout", s.handleLogout)
	})

	return r
}

// attachClientIP propagates the RealIP-resolved address so audit
// events record the caller.
func attachClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authgate.WithClientIP(r.Context(), r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// emailFromBody peeks at the JSON body for the throttle key and
// restores it so the handler can decode the request again.
func emailFromBody(r *http.Request) string {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var peek struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return ""
	}
	return peek.Email
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	bearer, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if bearer == "" {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message": "invalid credentials",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"token": bearer})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *server) handleVerifyUser(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}

	exists, err := s.engine.VerifyUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (s *server) handleGenerateOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.GenerateOTP(r.Context(), req.Email); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "verification code sent",
	})
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric"`
}

func (s *server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Code) != s.otpDigits {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "malformed verification code",
		})
		return
	}

	if err := s.engine.VerifyOTP(r.Context(), req.Email, req.Code); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "verification code accepted",
	})
}

func (s *server) handleResetToken(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}

	resetToken, err := s.engine.ResetPasswordToken(r.Context(), req.Email, 0)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"resetToken": resetToken})
}

type changePasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
	OldPassword string `json:"oldPassword"`
	ResetToken  string `json:"resetToken"`
}

func (s *server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.engine.ChangePassword(r.Context(), req.Email, req.NewPassword, authgate.ChangePasswordOptions{
		OldPassword: req.OldPassword,
		ResetToken:  req.ResetToken,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "password updated",
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "malformed request body",
		})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "invalid request: " + err.Error(),
		})
		return false
	}
	return true
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := authgate.StatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		message = "internal error"
	}
	s.writeJSON(w, status, map[string]string{"message": message})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("write response", zap.Error(err))
	}
}
