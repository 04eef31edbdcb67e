package organisation

import "time"

type Organisation struct {
	ID          int64
	OrgID       string // externally exposed identifier, distinct from the row id
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Payload is the public wire shape of an organisation.
type Payload struct {
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (o Organisation) Payload() Payload {
	return Payload{
		OrgID:       o.OrgID,
		Name:        o.Name,
		Description: o.Description,
	}
}

// DefaultName is the name of the organisation created for a user at
// registration.
func DefaultName(firstName string) string {
	return firstName + "'s Organisation"
}
