package backend

import (
	"context"
	"net/http"
	"net/url"

	"dashboard/model"
)

func (a *API) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	var q url.Values
	if role != "" {
		q = url.Values{"role": {string(role)}}
	}
	var data struct {
		Users []model.User `json:"users"`
	}
	if _, err := a.call(ctx, request{op: "list_users", method: http.MethodGet, path: "/users", query: q}, &data); err != nil {
		return nil, err
	}
	if data.Users == nil {
		data.Users = []model.User{}
	}
	return data.Users, nil
}

func (a *API) GetUser(ctx context.Context, id string) (*model.User, error) {
	var data struct {
		User model.User `json:"user"`
	}
	_, err := a.call(ctx, request{
		op:     "get_user",
		method: http.MethodGet,
		path:   "/users/getUser",
		query:  url.Values{"id": {id}},
	}, &data)
	if err != nil {
		return nil, err
	}
	return &data.User, nil
}

type UserInput struct {
	FirstName      string
	LastName       string
	Phone          string
	Role           model.Role
	DeliveryMethod string
	FCNNumber      string
	Photo          *Upload
}

func (u UserInput) fields() [][2]string {
	return [][2]string{
		{"firstName", u.FirstName},
		{"lastName", u.LastName},
		{"phone", u.Phone},
		{"role", string(u.Role)},
		{"deliveryMethod", u.DeliveryMethod},
		{"fcnNumber", u.FCNNumber},
	}
}

func (a *API) CreateUser(ctx context.Context, in UserInput) (*model.User, error) {
	return a.sendUser(ctx, "create_user", http.MethodPost, "/users", in)
}

func (a *API) UpdateUser(ctx context.Context, id string, in UserInput) (*model.User, error) {
	return a.sendUser(ctx, "update_user", http.MethodPatch, "/users/"+url.PathEscape(id), in)
}

func (a *API) sendUser(ctx context.Context, op, method, path string, in UserInput) (*model.User, error) {
	form, err := newForm(in.fields(), in.Photo)
	if err != nil {
		return nil, err
	}
	var data struct {
		User model.User `json:"user"`
	}
	if _, err := a.call(ctx, request{op: op, method: method, path: path, form: form}, &data); err != nil {
		return nil, err
	}
	return &data.User, nil
}

func (a *API) DeleteUser(ctx context.Context, id string) error {
	_, err := a.call(ctx, request{op: "delete_user", method: http.MethodDelete, path: "/users/" + url.PathEscape(id)}, nil)
	return err
}
