package backend

import (
	"context"
	"net/http"

	"dashboard/model"
)

type LoginResult struct {
	Token string
	User  model.User
}

func (a *API) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	var data struct {
		User *model.User `json:"user"`
	}
	env, err := a.call(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/users/login",
		body:   map[string]string{"phone": phone, "password": password},
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.User == nil || env.Token == "" {
		return nil, &APIError{Op: "login", StatusCode: http.StatusBadGateway, Message: "Invalid response from server"}
	}
	return &LoginResult{Token: env.Token, User: *data.User}, nil
}

type SignupRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup returns the backend message; the account is confirmed by OTP.
func (a *API) Signup(ctx context.Context, req SignupRequest) (string, error) {
	env, err := a.call(ctx, request{op: "signup", method: http.MethodPost, path: "/users/sign", body: req}, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (a *API) RequestResetOTP(ctx context.Context, phone string) (string, error) {
	env, err := a.call(ctx, request{
		op:     "request_reset_otp",
		method: http.MethodPost,
		path:   "/users/requestResetOTP",
		body:   map[string]string{"phone": phone},
	}, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (a *API) VerifyOTP(ctx context.Context, phone, code string) (string, error) {
	env, err := a.call(ctx, request{
		op:     "verify_otp",
		method: http.MethodPost,
		path:   "/users/verifyOTP",
		body:   map[string]string{"phone": phone, "code": code},
	}, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

type ResetPasswordRequest struct {
	Phone           string `json:"phone"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (a *API) ResetPasswordOTP(ctx context.Context, req ResetPasswordRequest) (string, error) {
	env, err := a.call(ctx, request{op: "reset_password_otp", method: http.MethodPost, path: "/users/resetPasswordOTP", body: req}, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

type ProfileUpdate struct {
	FirstName string
	LastName  string
	Email     string
	Photo     *Upload
}

func (a *API) UpdateMe(ctx context.Context, upd ProfileUpdate) (*model.User, error) {
	form, err := newForm([][2]string{
		{"firstName", upd.FirstName},
		{"lastName", upd.LastName},
		{"email", upd.Email},
	}, upd.Photo)
	if err != nil {
		return nil, err
	}
	var data struct {
		User model.User `json:"user"`
	}
	if _, err := a.call(ctx, request{op: "update_me", method: http.MethodPatch, path: "/users/updateMe", form: form}, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}

func (a *API) DeleteMe(ctx context.Context) error {
	_, err := a.call(ctx, request{op: "delete_me", method: http.MethodDelete, path: "/users/deleteMe"}, nil)
	return err
}
