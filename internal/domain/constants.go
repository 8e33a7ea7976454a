package domain

const (
	TransactionTypeDeposit = "deposit"
)

const (
	MaterialPlastic  = "plastic"
	MaterialAluminum = "aluminum"
)

// Source records which surface a deposit came through.
const (
	SourceApp   = "app"
	SourceKiosk = "kiosk"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusFailed    = "failed"
)

const (
	KioskIDLength   = 8
	KioskIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Detection labels counted as recyclable containers.
var DetectionLabels = []string{"bottle", "cup", "wine glass"}
