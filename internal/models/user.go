package models

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// User is the account that receives purchased time.
type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	VIPTime   int64     `json:"vip_time"`
	CreatedAt time.Time `json:"created_at"`
}

// Claims is the payload of an access token.
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.StandardClaims
}
