package models

import "time"

// PayoutRequest: заявка пользователя на вывод в криптовалюте.
type PayoutRequest struct {
	ID            string     `json:"id"`
	PackageID     string     `json:"package_id"`
	UserID        string     `json:"user_id"`
	WalletAddress string     `json:"wallet_address"`
	Stablecoin    string     `json:"stablecoin"`
	Network       string     `json:"network"`
	Metadata      []byte     `json:"-"`
	Approved      bool       `json:"approved"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PayoutSubmit: тело запроса на выплату.
type PayoutSubmit struct {
	Stablecoin           string `json:"stablecoin" validate:"required"`
	Network              string `json:"network" validate:"required"`
	WalletAddress        string `json:"walletAddress" validate:"required"`
	ConfirmWalletAddress string `json:"confirmWalletAddress" validate:"required,eqfield=WalletAddress"`
	Agreed               bool   `json:"agreed" validate:"required"`
}

// PayoutMetadata сериализуется в payout_requests.metadata.
type PayoutMetadata struct {
	Stablecoin string `json:"stablecoin"`
	Network    string `json:"network"`
}
