package domain

import (
	"errors"
	"fmt"
)

// Таксономия ошибок брокера. Брокер ничего не ретраит: каждая ошибка
// синхронно уходит вызывающему dApp как есть.

// InvalidParamError — битые/отсутствующие поля запроса.
// Запись PendingRequest при этом не создается.
type InvalidParamError struct {
	Msg string
}

func (e *InvalidParamError) Error() string {
	return "invalid params: " + e.Msg
}

func NewInvalidParamError(msg string) error {
	return &InvalidParamError{Msg: msg}
}

// NoPermissionError — быстрая проверка показала нехватку прав, и данная
// операция не запускает интерактивный запрос. dApp должен заново пройти
// connect-флоу.
type NoPermissionError struct {
	Op      string
	Missing []Capability
}

func (e *NoPermissionError) Error() string {
	return fmt.Sprintf("no permission for %s, missing %v", e.Op, e.Missing)
}

// UserRejectionError — человек отклонил запрос явно, либо сработал
// fallback-deny при закрытии окна без решения.
type UserRejectionError struct{}

func (e *UserRejectionError) Error() string {
	return "user rejected the request"
}

// NotFoundError — не нашлись сущности скоупа (аккаунт, сеть, кошелек).
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found, id=%s", e.What, e.ID)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsUserRejection(err error) bool {
	var ur *UserRejectionError
	return errors.As(err, &ur)
}

func IsNoPermission(err error) bool {
	var np *NoPermissionError
	return errors.As(err, &np)
}

func IsInvalidParam(err error) bool {
	var ip *InvalidParamError
	return errors.As(err, &ip)
}
