package port

import "time"

type TokenIssuer interface {
	// Issue signs a credential for userID, returning it with its expiry.
	Issue(userID int64) (string, time.Time, error)

	// Verify checks signature and expiry and returns the user id it carries.
	Verify(token string) (int64, error)
}
