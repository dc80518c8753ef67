package service

import (
	"errors"
	"fmt"
)

// Сентинелы для errors.Is: по ним транспортный слой выбирает HTTP статус.
var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrDependency            = errors.New("dependency failure")
)

// ValidationError — некорректная форма запроса, до каких-либо изменений.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError — неизвестный пользователь, товар или заказ.
type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	switch e.Entity {
	case "user":
		return "User not found"
	case "product":
		return fmt.Sprintf("Product with ID %v not found", e.Key)
	default:
		return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
	}
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientInventoryError указывает товар, на котором не сошёлся остаток.
type InsufficientInventoryError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("Product %s (ID: %d) does not have enough inventory.", e.Name, e.ProductID)
}

func (e *InsufficientInventoryError) Is(target error) bool { return target == ErrInsufficientInventory }

// DependencyError оборачивает отказ БД, очереди или почты.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *DependencyError) Unwrap() error { return e.Err }

func (e *DependencyError) Is(target error) bool { return target == ErrDependency }
