package api

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/nbd-wtf/go-nostr"

	opsdb "github.com/Maphikza/iqube-ops/internal/database"
	"github.com/Maphikza/iqube-ops/internal/logger"
)

func (s *Server) HandleChallengeRequest(w http.ResponseWriter, _ *http.Request) {
	pubKey := s.opts.UserPubKey
	if pubKey == "" {
		writeError(w, http.StatusInternalServerError, "Operator public key not configured")
		return
	}

	challenge, hash, err := generateChallenge()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate challenge")
		return
	}

	if err := s.store.SaveChallenge(opsdb.Challenge{
		Challenge: challenge,
		Hash:      hash,
		Status:    opsdb.ChallengeUnused,
		Npub:      pubKey,
		CreatedAt: time.Now(),
	}); err != nil {
		logger.Error("Failed to save challenge", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save challenge")
		return
	}

	// Returned as an unsigned nostr event for the operator to sign.
	event := &nostr.Event{
		PubKey:    pubKey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      1,
		Tags:      nostr.Tags{},
		Content:   challenge,
	}
	writeJSON(w, http.StatusOK, event)
}

func generateChallenge() (string, string, error) {
	timestamp := time.Now().Format(time.RFC3339Nano)
	letters := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	challenge := make([]byte, 12)
	_, err := rand.Read(challenge)
	if err != nil {
		return "", "", err
	}
	for i := range challenge {
		challenge[i] = letters[challenge[i]%byte(len(letters))]
	}
	fullChallenge := fmt.Sprintf("%s-%s", string(challenge), timestamp)
	return fullChallenge, challengeHash(fullChallenge), nil
}

func challengeHash(challenge string) string {
	hash := sha256.Sum256([]byte(challenge))
	return hex.EncodeToString(hash[:])
}

// VerifyChallenge exchanges a signed challenge for a JWT.
func (s *Server) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Cannot parse JSON")
		return
	}

	challenge, err := s.store.GetChallenge(challengeHash(req.Challenge))
	if err != nil || challenge.Status != opsdb.ChallengeUnused {
		writeError(w, http.StatusUnauthorized, "Invalid or expired challenge")
		return
	}

	if time.Since(challenge.CreatedAt) > s.opts.ChallengeTTL {
		if err := s.store.MarkChallengeAsUsed(challenge.Hash); err != nil {
			logger.Warn("Failed to retire expired challenge", "error", err)
		}
		writeError(w, http.StatusUnauthorized, "Challenge expired")
		return
	}

	if req.Event.PubKey != challenge.Npub {
		writeError(w, http.StatusUnauthorized, "Public key mismatch")
		return
	}
	if req.Event.Content != challenge.Challenge {
		writeError(w, http.StatusUnauthorized, "Event does not carry the challenge")
		return
	}
	if err := verifyEvent(&req.Event); err != nil {
		logger.Warn("Challenge signature rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	if err := s.store.MarkChallengeAsUsed(challenge.Hash); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark challenge as used")
		return
	}

	tokenString, err := s.GenerateJWT(challenge.Npub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}

func verifyEvent(event *nostr.Event) error {
	if event.GetID() != event.ID {
		return errors.New("event id does not match its content")
	}
	ok, err := event.CheckSignature()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("signature does not verify")
	}
	return nil
}

// GenerateJWT issues an operator token for userID.
func (s *Server) GenerateJWT(userID string) (string, error) {
	if len(s.jwtKey) == 0 {
		return "", errors.New("JWT signing key not available")
	}
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.opts.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtKey)
}
