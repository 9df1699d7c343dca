package fsm

// Wire objects consumed from the field-service platform's data APIs. Only the
// fields this service reads are modeled; the platform versions its objects and
// tolerates unknown fields on our side.

// User is a platform login account.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Activity is one unit of field work.
type Activity struct {
	ID           string   `json:"id"`
	Code         string   `json:"code"`
	EquipmentID  string   `json:"equipment"`
	ContactID    string   `json:"contact"`
	Responsibles []string `json:"responsibles"`
}

// Contact is the business contact linked to an activity.
type Contact struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PositionName string `json:"positionName"`
	EmailAddress string `json:"emailAddress"`
}

// Person is a workforce member, typically an activity responsible.
type Person struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	JobTitle     string `json:"jobTitle"`
	PositionName string `json:"positionName"`
	EmailAddress string `json:"emailAddress"`
}

// UDFValue is one custom (user-defined) field on a platform object.
type UDFValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// equipmentResult is the query-API projection used to read an equipment's
// custom fields.
type equipmentResult struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	UDFValues []UDFValue `json:"udfValues"`
}

// Versions pins the data-model versions requested from the data API.
type Versions struct {
	Activity  int
	Contact   int
	Person    int
	Equipment int
}

// DefaultVersions were current when this integration was written; only a few
// fields of each object are consumed, so drift is tolerated.
var DefaultVersions = Versions{Activity: 37, Contact: 17, Person: 24, Equipment: 23}
