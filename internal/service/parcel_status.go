package service

import (
	"strings"

	"github.com/parcel-next/internal/constants"
)

// 包裹状态机：
// Pending -> In Transit -> Delivered
// Pending / In Transit -> Cancelled
// Delivered 与 Cancelled 为终态。

// NormalizeStatus 规范化状态值（大小写与首尾空白不敏感）
func NormalizeStatus(status string) string {
	trimmed := strings.TrimSpace(status)
	for _, known := range []string{
		constants.ParcelStatusPending,
		constants.ParcelStatusInTransit,
		constants.ParcelStatusDelivered,
		constants.ParcelStatusCancelled,
	} {
		if strings.EqualFold(trimmed, known) {
			return known
		}
	}
	return trimmed
}

// IsKnownStatus 判断是否为已知状态
func IsKnownStatus(status string) bool {
	switch NormalizeStatus(status) {
	case constants.ParcelStatusPending,
		constants.ParcelStatusInTransit,
		constants.ParcelStatusDelivered,
		constants.ParcelStatusCancelled:
		return true
	}
	return false
}

// IsTerminalStatus 判断是否为终态
func IsTerminalStatus(status string) bool {
	switch NormalizeStatus(status) {
	case constants.ParcelStatusDelivered, constants.ParcelStatusCancelled:
		return true
	}
	return false
}

// CanTransition 判断调度状态流转是否合法
func CanTransition(from, to string) bool {
	from = NormalizeStatus(from)
	to = NormalizeStatus(to)
	if from == to {
		return false
	}
	switch from {
	case constants.ParcelStatusPending:
		return to == constants.ParcelStatusInTransit ||
			to == constants.ParcelStatusDelivered ||
			to == constants.ParcelStatusCancelled
	case constants.ParcelStatusInTransit:
		return to == constants.ParcelStatusDelivered ||
			to == constants.ParcelStatusCancelled
	default:
		return false
	}
}
