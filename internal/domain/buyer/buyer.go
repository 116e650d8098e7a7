// Package buyer holds the authenticated customer identity shared by the
// authorization guard and the checkout orchestrator.
package buyer

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for buyer lookup and authentication.
var (
	ErrNotFound           = errors.New("buyer not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Role values. Only admins may mutate order status.
const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

// Address is the shipping destination. The guard treats an absent address as
// a blocker for checkout.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipcode"`
}

// Empty reports whether no usable shipping address is present.
func (a Address) Empty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.ZipCode == ""
}

// Buyer is an authenticated actor. PasswordHash is a bcrypt hash and never
// leaves the storage layer in responses.
type Buyer struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Address      *Address
	Role         string
}

// HasAddress reports whether the buyer has a non-empty shipping address.
func (b *Buyer) HasAddress() bool {
	return b != nil && b.Address != nil && !b.Address.Empty()
}

// IsAdmin reports whether the buyer holds the admin role.
func (b *Buyer) IsAdmin() bool {
	return b != nil && b.Role == RoleAdmin
}

// Repository defines persistence operations for buyers.
type Repository interface {
	Create(ctx context.Context, b *Buyer) error
	FindByID(ctx context.Context, id string) (*Buyer, error)
	FindByEmail(ctx context.Context, email string) (*Buyer, error)
	UpdateAddress(ctx context.Context, id string, addr Address) error
}

// HashPassword produces a bcrypt hash at the default cost.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// CheckPassword compares a candidate password against the stored hash.
func (b *Buyer) CheckPassword(plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(b.PasswordHash), []byte(plain)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
