package core

// Actor is the authenticated user on whose behalf a service operation runs.
type Actor struct {
	ID      string
	Admin   bool
	Teacher bool
	Student bool
}

// System is the Actor used by jobs, webhooks and the admin CLI.
var System = Actor{Admin: true}

// Owns reports whether the actor is the user identified by userID.
func (a Actor) Owns(userID string) bool {
	return a.ID != "" && a.ID == userID
}

// CanManage reports whether the actor may mutate a resource owned by ownerID.
func (a Actor) CanManage(ownerID string) bool {
	return a.Admin || (a.Teacher && a.Owns(ownerID))
}
