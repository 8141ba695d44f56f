package service

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	api "gitlab.com/dirk.krummacker/contact-book/pkg/model"
)

// xlsxContentType is the media type of an Office Open XML workbook.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// importContacts adds the rows of an uploaded CSV, XLS or XLSX file to the contacts of the
// logged-in user. The file is sent as the multipart field 'file'.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/import --cookie cookies.txt --form "file=@contacts.xlsx"
func (s *Server) importContacts(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes())
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				gin.H{"message": fmt.Sprintf("file is larger than %d MB", s.cfg.MaxUploadMB)})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "no file uploaded"})
		return
	}
	file, err := header.Open()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	report, err := s.bridge.Import(c.Request.Context(), identity(c).UserID, header.Filename, data)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, api.ImportReport{
		Added:      report.Added,
		Duplicates: report.Duplicates,
		Invalid:    report.Invalid,
	})
}

// exportContacts responds with all contacts of the logged-in user as an xlsx download.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/export --cookie cookies.txt --output contacts.xlsx
func (s *Server) exportContacts(c *gin.Context) {
	data, err := s.bridge.Export(c.Request.Context(), identity(c).UserID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="contacts.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
