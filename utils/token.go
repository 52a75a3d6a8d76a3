package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type JwtCustomClaim struct {
	EmployeeId int    `json:"employee_id"`
	BranchId   int    `json:"branch_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	jwt.StandardClaims
}

var jwtSecret = []byte(getJwtSecret())

func getJwtSecret() string {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return "Teller-Secret"
	}
	return secret
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 12
	}
	return time.Hour * time.Duration(hours)
}

func JwtGenerate(employeeId int, branchId int, username string, role string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		EmployeeId: employeeId,
		BranchId:   branchId,
		Username:   username,
		Role:       role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(tokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	token, err := t.SignedString(jwtSecret)
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret, nil
	})
}

// ParseClaims validates the token and returns its claims.
func ParseClaims(token string) (*JwtCustomClaim, error) {
	validated, err := JwtValidate(token)
	if err != nil {
		return nil, err
	}
	claims, ok := validated.Claims.(*JwtCustomClaim)
	if !ok || !validated.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.EmployeeId <= 0 || claims.BranchId <= 0 {
		return nil, errors.New("token is missing employee or branch")
	}
	return claims, nil
}
