package infra

import "fmt"

const (
	// RedisNamespace — базовый префикс для изоляции данных кошелька в Redis.
	RedisNamespace = "wallet"
)

// Ключи хранилищ (одна JSON-запись на хранилище, как в StorageKeys расширения)
const (
	RedisKeyPermGrants  = RedisNamespace + ":perm_grants"
	RedisKeyPermReqs    = RedisNamespace + ":reqs:permission"
	RedisKeyTxReqs      = RedisNamespace + ":reqs:transaction"
	RedisKeySignReqs    = RedisNamespace + ":reqs:sign"
	RedisKeyAppContext  = RedisNamespace + ":app_context"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanDecisions — префикс каналов решений оператора.
	// Полное имя: wallet:approvals:decision:{requestID}
	RedisChanDecisions = RedisNamespace + ":approvals:decision"

	// RedisChanSurfaceClosed — префикс каналов "окно одобрения закрыто".
	// Полное имя: wallet:approvals:closed:{requestID}
	RedisChanSurfaceClosed = RedisNamespace + ":approvals:closed"
)

// DecisionChannel строит имя канала решения для конкретного запроса.
func DecisionChannel(requestID string) string {
	return fmt.Sprintf("%s:%s", RedisChanDecisions, requestID)
}

// SurfaceClosedChannel строит имя канала закрытия окна для запроса.
func SurfaceClosedChannel(requestID string) string {
	return fmt.Sprintf("%s:%s", RedisChanSurfaceClosed, requestID)
}
