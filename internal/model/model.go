package model

import "strings"

// User is an account that owns contacts. The password is only ever held as a
// bcrypt hash.
type User struct {
	Id           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
}

// Contact is the data structure for a person that we know. Every contact
// belongs to exactly one user, and the phone number is unique per user.
type Contact struct {
	Id      int64  `json:"id"      db:"id"`
	Name    string `json:"name"    db:"name"`
	Phone   string `json:"phone"   db:"phone"`
	Email   string `json:"email"   db:"email"`
	Address string `json:"address" db:"address"`
	UserId  int64  `json:"-"       db:"user_id"`
}

// ContactInput carries the user-editable fields of a contact, as submitted by
// a form, a JSON body or a spreadsheet row. The length limits match the
// database columns.
type ContactInput struct {
	Name    string `json:"name"    form:"name"    validate:"required,max=100"`
	Phone   string `json:"phone"   form:"phone"   validate:"required,max=20"`
	Email   string `json:"email"   form:"email"   validate:"max=120"`
	Address string `json:"address" form:"address" validate:"max=200"`
}

// Trimmed returns a copy of the input with surrounding whitespace removed
// from every field.
func (in ContactInput) Trimmed() ContactInput {
	return ContactInput{
		Name:    strings.TrimSpace(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		Email:   strings.TrimSpace(in.Email),
		Address: strings.TrimSpace(in.Address),
	}
}

// Credentials are the login or registration data of a user.
type Credentials struct {
	Username string `json:"username" form:"username" validate:"notblank,max=100"`
	Password string `json:"password" form:"password" validate:"notblank,max=72"`
}

// Page restricts a result list. The zero value means no restriction.
type Page struct {
	Limit  int
	Offset int
}

// ImportReport summarizes a spreadsheet import.
type ImportReport struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}
