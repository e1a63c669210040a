package planapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Profile holds the fields of the edit-info form.
type Profile struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`
}

// Complete reports whether the fields required by the data removal service are filled in.
func (p Profile) Complete() bool {
	return p.FirstName != "" && p.LastName != "" && p.Email != "" && p.DateOfBirth != "" && p.ZipCode != ""
}

// Profile fetches the profile for the edit-info form.
// With a setup token the account-setup endpoint is used instead of the user's own profile.
// Errors are classified by ClassifyProfileError.
func (c *Client) Profile(ctx context.Context, token, setupToken string) (*Profile, error) {
	path := "/users/profile"
	if setupToken != "" {
		path = "/setup/" + url.PathEscape(setupToken) + "/profile"
	}

	var p Profile
	if err := c.get(ctx, token, path, &p); err != nil {
		return nil, ClassifyProfileError(err, setupToken != "")
	}
	return &p, nil
}

// ClassifyProfileError maps a profile fetch failure onto the profile error taxonomy:
// 401 means the session expired, 404 with a setup token means the token is unknown,
// everything else is a retry-eligible ErrProfileUnavailable.
func ClassifyProfileError(err error, withSetupToken bool) error {
	if err == nil {
		return nil
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusUnauthorized:
			return errors.Join(ErrSessionExpired, err)
		case statusErr.Code == http.StatusNotFound && withSetupToken:
			return errors.Join(ErrTokenNotFound, err)
		}
	}
	if errors.Is(err, ErrMissingToken) {
		return errors.Join(ErrSessionExpired, err)
	}
	return errors.Join(ErrProfileUnavailable, err)
}
