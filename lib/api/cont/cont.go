// Package cont carries the authenticated admin user through the request context.
package cont

import (
	"context"
	"wedsync/entity"
)

type ctxKey string

const UserDataKey ctxKey = "userData"

func PutUser(c context.Context, user *entity.User) context.Context {
	if user == nil {
		return c
	}
	return context.WithValue(c, UserDataKey, *user)
}

func GetUser(c context.Context) *entity.User {
	user, ok := c.Value(UserDataKey).(entity.User)
	if !ok {
		return nil
	}
	return &user
}

// Username is the authenticated user's name, or "" for guest requests.
func Username(c context.Context) string {
	if user := GetUser(c); user != nil {
		return user.Username
	}
	return ""
}
