package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/campusbank/backend/internal/ledger"
)

// qrTTL bounds how long a generated payment QR stays redeemable.
const qrTTL = 5 * time.Minute

// QRService builds the peer-transfer QR flow: an account's QR encodes its
// number and holder name (plus an optional requested amount); scanning it
// resolves and consumes a one-time token, and the client then submits a
// regular transfer against the resolved account number.
type QRService struct {
	registry *ledger.Registry
	redis    *redis.Client
}

// QRPayload is the data encoded into a generated QR code.
type QRPayload struct {
	AccountNo string `json:"accountNo"`
	FullName  string `json:"fullName"`
	Amount    string `json:"amount,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
}

func NewQRService(registry *ledger.Registry, redisClient *redis.Client) *QRService {
	return &QRService{
		registry: registry,
		redis:    redisClient,
	}
}

// GenerateQRCode returns the opaque QR token and a base64 PNG rendering of
// it. The token is stored in Redis with a TTL so it is single-use and
// expiring.
func (s *QRService) GenerateQRCode(ctx context.Context, accountNo, amount string) (string, string, error) {
	rec, err := s.registry.FindByAccountNumber(ctx, accountNo)
	if err != nil {
		return "", "", err
	}

	payload := QRPayload{
		AccountNo: rec.Account.Number,
		FullName:  rec.Account.DisplayName,
		Amount:    amount,
		Timestamp: time.Now().Unix(),
		Nonce:     generateNonce(),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	qrToken := base64.URLEncoding.EncodeToString(jsonData)

	if s.redis != nil {
		key := fmt.Sprintf("qr:%s", qrToken)
		if err := s.redis.Set(ctx, key, jsonData, qrTTL).Err(); err != nil {
			return "", "", err
		}
	}

	qr, err := qrcode.New(qrToken, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return qrToken, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ProcessQRCode resolves a scanned token into its payload and consumes it.
func (s *QRService) ProcessQRCode(ctx context.Context, qrToken string) (*QRPayload, error) {
	var data []byte
	if s.redis != nil {
		key := fmt.Sprintf("qr:%s", qrToken)
		var err error
		data, err = s.redis.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil, fmt.Errorf("invalid or expired QR code")
		}
		if err != nil {
			return nil, err
		}
		s.redis.Del(ctx, key)
	} else {
		// No Redis: fall back to decoding the self-describing token.
		var err error
		data, err = base64.URLEncoding.DecodeString(qrToken)
		if err != nil {
			return nil, fmt.Errorf("invalid QR code")
		}
	}

	var payload QRPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid QR code")
	}

	// The encoded account must still resolve before the caller offers a
	// transfer against it.
	if _, err := s.registry.FindByAccountNumber(ctx, payload.AccountNo); err != nil {
		return nil, ledger.ErrRecipientNotFound
	}

	return &payload, nil
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
