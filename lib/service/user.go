package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/zangapay/escrow.go/db/models"
	"github.com/zangapay/escrow.go/lib/security"
	"github.com/zangapay/escrow.go/lib/tokens"
)

// CreateUser registers a seller account. A blank login or password is
// generated. When a referral code of an existing user is supplied the new
// account is attributed to that referrer for commission purposes.
func (svc *EscrowService) CreateUser(ctx context.Context, login, password, email, referralCode string) (user *models.User, err error) {
	user = &models.User{}

	user.Login = login
	if login == "" {
		randLoginBytes, err := randBytesFromStr(20, alphaNumBytes)
		if err != nil {
			return nil, err
		}
		user.Login = string(randLoginBytes)
	}
	if password == "" {
		randPasswordBytes, err := randBytesFromStr(20, alphaNumBytes)
		if err != nil {
			return nil, err
		}
		password = string(randPasswordBytes)
	}
	user.Email = email

	if referralCode != "" {
		referrer, err := svc.FindUserByReferralCode(ctx, referralCode)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if referrer != nil {
			user.ReferrerID = referrer.ID
		}
	}

	ownCodeBytes, err := randBytesFromStr(8, alphaNumBytes)
	if err != nil {
		return nil, err
	}
	user.ReferralCode = string(ownCodeBytes)

	// we only store the hashed password but return the initial plain text password in the HTTP response
	hashedPassword := security.HashPassword(password)
	user.Password = hashedPassword

	// create the user and their empty referral balance together
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return err
		}
		balance := &models.ReferralBalance{ReferrerID: user.ID}
		_, err := tx.NewInsert().Model(balance).Exec(ctx)
		return err
	})
	//return actual password in the response, not the hashed one
	user.Password = password
	return user, err
}

func (svc *EscrowService) FindUser(ctx context.Context, userId int64) (*models.User, error) {
	var user models.User
	err := svc.DB.NewSelect().Model(&user).Where("id = ?", userId).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (svc *EscrowService) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := svc.DB.NewSelect().Model(&user).Where("login = ?", login).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (svc *EscrowService) FindUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := svc.DB.NewSelect().Model(&user).Where("referral_code = ?", code).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GenerateToken : login with credentials or refresh an existing session
func (svc *EscrowService) GenerateToken(ctx context.Context, login, password, inRefreshToken string) (accessToken, refreshToken string, err error) {
	var user *models.User

	switch {
	case login != "" || password != "":
		{
			user, err = svc.FindUserByLogin(ctx, login)
			if err != nil {
				return "", "", fmt.Errorf("bad auth")
			}
			if !security.VerifyPassword(user.Password, password) {
				return "", "", fmt.Errorf("bad auth")
			}
		}
	case inRefreshToken != "":
		{
			userId, err := tokens.ParseRefreshClaims(svc.Config.JWTSecret, inRefreshToken)
			if err != nil {
				return "", "", fmt.Errorf("bad auth")
			}
			user, err = svc.FindUser(ctx, userId)
			if err != nil {
				return "", "", fmt.Errorf("bad auth")
			}
		}
	default:
		{
			return "", "", fmt.Errorf("login and password or refresh token is required")
		}
	}

	if user.Deactivated {
		return "", "", fmt.Errorf("bad auth")
	}

	accessToken, err = tokens.GenerateAccessToken(svc.Config.JWTSecret, svc.Config.JWTAccessTokenExpiry, user)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = tokens.GenerateRefreshToken(svc.Config.JWTSecret, svc.Config.JWTRefreshTokenExpiry, user)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}
