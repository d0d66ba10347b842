package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether the sender is the configured admin. A zero
// AdminID means no one is.
func IsAdmin(c tele.Context, adminID int64) bool {
	u := c.Sender()
	return adminID != 0 && u != nil && u.ID == adminID
}

// AdminOnlyMiddleware lets only the admin reach downstream handlers. With no
// admin configured every sender is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !IsAdmin(c, opts.AdminID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
