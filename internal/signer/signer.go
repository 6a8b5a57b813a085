package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// SignedMessage — результат подписи: подпись и исходное сообщение,
// оба в том виде, в котором их ждет dApp.
type SignedMessage struct {
	Signature     string `json:"signature"`
	SignedMessage string `json:"signedMessage"`
}

// Signer — граница с keystore-сервисом. Сами ключи и криптография
// транзакций живут за ней; брокер только решает, можно ли подписывать.
type Signer interface {
	SignMessage(ctx context.Context, walletID, accountID string, message []byte) (*SignedMessage, error)
}

// DerivedSigner — локальная реализация для стенда: ключ детерминированно
// выводится из walletId+accountId. Не для продакшена, keystore-сервис
// подключается вместо нее той же границей.
type DerivedSigner struct{}

func NewDerivedSigner() *DerivedSigner {
	return &DerivedSigner{}
}

func (s *DerivedSigner) SignMessage(_ context.Context, walletID, accountID string, message []byte) (*SignedMessage, error) {
	if len(message) == 0 {
		return nil, fmt.Errorf("signer: empty message")
	}

	seed := sha256.Sum256([]byte(walletID + ":" + accountID))
	priv := ed25519.NewKeyFromSeed(seed[:])
	sig := ed25519.Sign(priv, message)

	return &SignedMessage{
		Signature:     base64.StdEncoding.EncodeToString(sig),
		SignedMessage: base64.StdEncoding.EncodeToString(message),
	}, nil
}
