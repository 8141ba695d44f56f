// Package model contains the JSON documents exchanged with the contact book
// REST API. It is shared by the server and by API clients.
package model

// Contact is the data structure for a person that we know.
type Contact struct {
	Id      int64  `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Identity is the user bound to the current session.
type Identity struct {
	UserId   int64  `json:"userId"`
	Username string `json:"username"`
}

// ImportReport is the answer to a spreadsheet upload.
type ImportReport struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Message is the body of every answer that carries no document.
type Message struct {
	Message string `json:"message"`
}
