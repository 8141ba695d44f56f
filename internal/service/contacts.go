package service

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
	api "gitlab.com/dirk.krummacker/contact-book/pkg/model"
)

// findContacts responds with the contacts of the logged-in user as JSON.
//
// The URL parameter 'query' restricts the list to contacts whose name, phone or email contains
// the text, ignoring case. Without it, all contacts are returned, ordered by id.
//
// The URL parameter 'limit' specifies how many contacts matching the search criteria are returned.
// The URL parameter 'offset' specifies how many items from the sorted list of results are skipped
// in the beginning. Together with the 'limit' parameter, one can implement search result paging.
//
// REST API calls:
//
//	> curl --cookie cookies.txt "http://localhost:8080/contacts"
//	> curl --cookie cookies.txt "http://localhost:8080/contacts?query=erika"
//	> curl --cookie cookies.txt "http://localhost:8080/contacts?limit=20&offset=60"
func (s *Server) findContacts(c *gin.Context) {
	page, success := parseLimitAndOffset(c)
	if !success {
		return
	}
	found, err := s.contacts.Search(c.Request.Context(), identity(c).UserID, c.Query("query"), page)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, toContacts(found))
}

// createContact adds the contact specified in the request's JSON or form body. It responds with
// the full contact data including the newly assigned id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --cookie cookies.txt --request "POST" --include --header "Content-Type: application/json" --data '{"name": "Hans Wurst", "phone": "0815"}'
func (s *Server) createContact(c *gin.Context) {
	var submitted model.ContactInput
	if err := c.ShouldBind(&submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	contact, err := s.contacts.Add(c.Request.Context(), identity(c).UserID, submitted)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, toContact(contact))
}

// findContactByID responds with the contact whose id matches the id parameter of the request URL.
//
// Example REST API call:
//
//	> curl --cookie cookies.txt http://localhost:8080/contacts/56
func (s *Server) findContactByID(c *gin.Context) {
	id, success := parseID(c)
	if !success {
		return
	}
	contact, err := s.contacts.Get(c.Request.Context(), id, identity(c).UserID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, toContact(contact))
}

// updateContactByID replaces all fields of the contact whose id matches the id parameter of the
// request URL, and responds with the new version of the contact. Fields missing from the body
// are cleared.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --cookie cookies.txt --request "PUT" --include --header "Content-Type: application/json" --data '{"name": "Hans Wurst", "phone": "81970"}'
func (s *Server) updateContactByID(c *gin.Context) {
	id, success := parseID(c)
	if !success {
		return
	}
	var submitted model.ContactInput
	if err := c.ShouldBind(&submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	contact, err := s.contacts.Update(c.Request.Context(), id, identity(c).UserID, submitted)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, toContact(contact))
}

// deleteContactByID deletes the contact whose id matches the id parameter of the request URL.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --cookie cookies.txt --request "DELETE"
func (s *Server) deleteContactByID(c *gin.Context) {
	id, success := parseID(c)
	if !success {
		return
	}
	if err := s.contacts.Delete(c.Request.Context(), id, identity(c).UserID); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

func toContact(contact model.Contact) api.Contact {
	return api.Contact{
		Id:      contact.Id,
		Name:    contact.Name,
		Phone:   contact.Phone,
		Email:   contact.Email,
		Address: contact.Address,
	}
}

func toContacts(contacts []model.Contact) []api.Contact {
	result := make([]api.Contact, 0, len(contacts))
	for _, contact := range contacts {
		result = append(result, toContact(contact))
	}
	return result
}
