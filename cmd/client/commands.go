package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	api "gitlab.com/dirk.krummacker/contact-book/pkg/model"
)

var (
	contactEmail   string
	contactAddress string
	listQuery      string
	listLimit      int
	listOffset     int
)

var registerCmd = &cobra.Command{
	Use:   "register [username] [password]",
	Short: "Create a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var identity api.Identity
		credentials := map[string]string{"username": args[0], "password": args[1]}
		if err := newClient().sendJSON(http.MethodPost, "/register", credentials, &identity); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %s (id %d)\n", identity.Username, identity.UserId)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [username] [password]",
	Short: "Log in and keep the session for the following commands",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var identity api.Identity
		credentials := map[string]string{"username": args[0], "password": args[1]}
		if err := newClient().sendJSON(http.MethodPost, "/login", credentials, &identity); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", identity.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().sendJSON(http.MethodPost, "/logout", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add [name] [phone]",
	Short: "Add a contact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var contact api.Contact
		input := api.Contact{Name: args[0], Phone: args[1], Email: contactEmail, Address: contactAddress}
		if err := newClient().sendJSON(http.MethodPost, "/contacts", input, &contact); err != nil {
			return err
		}
		printContacts(cmd.OutOrStdout(), []api.Contact{contact})
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [id] [name] [phone]",
	Short: "Replace all fields of a contact",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var contact api.Contact
		input := api.Contact{Name: args[1], Phone: args[2], Email: contactEmail, Address: contactAddress}
		if err := newClient().sendJSON(http.MethodPut, "/contacts/"+id, input, &contact); err != nil {
			return err
		}
		printContacts(cmd.OutOrStdout(), []api.Contact{contact})
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var contact api.Contact
		if err := newClient().sendJSON(http.MethodGet, "/contacts/"+id, nil, &contact); err != nil {
			return err
		}
		printContacts(cmd.OutOrStdout(), []api.Contact{contact})
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := newClient().sendJSON(http.MethodDelete, "/contacts/"+id, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted contact %s\n", id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List or search contacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		if listQuery != "" {
			params.Set("query", listQuery)
		}
		if listLimit > 0 {
			params.Set("limit", strconv.Itoa(listLimit))
		}
		if listOffset > 0 {
			params.Set("offset", strconv.Itoa(listOffset))
		}
		path := "/contacts"
		if len(params) > 0 {
			path += "?" + params.Encode()
		}
		var contacts []api.Contact
		if err := newClient().sendJSON(http.MethodGet, path, nil, &contacts); err != nil {
			return err
		}
		printContacts(cmd.OutOrStdout(), contacts)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import contacts from a .csv, .xls or .xlsx file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", filepath.Base(args[0]))
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
		if err := writer.Close(); err != nil {
			return err
		}

		resBody, err := newClient().send(http.MethodPost, "/contacts/import", writer.FormDataContentType(), &body)
		if err != nil {
			return err
		}
		var report api.ImportReport
		if err := json.Unmarshal(resBody, &report); err != nil {
			return fmt.Errorf("could not unmarshal JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %d, skipped %d duplicates and %d invalid rows\n",
			report.Added, report.Duplicates, report.Invalid)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Download all contacts as an xlsx workbook",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "contacts.xlsx"
		if len(args) == 1 {
			target = args[0]
		}
		data, err := newClient().send(http.MethodGet, "/contacts/export", "", nil)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{addCmd, updateCmd} {
		cmd.Flags().StringVar(&contactEmail, "email", "", "email address of the contact")
		cmd.Flags().StringVar(&contactAddress, "address", "", "postal address of the contact")
	}
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "only contacts whose name, phone or email contains this text")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum number of contacts")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "number of contacts to skip")

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, addCmd, updateCmd, getCmd, deleteCmd,
		listCmd, importCmd, exportCmd, benchCmd)
}

func parseID(arg string) (string, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return "", fmt.Errorf("invalid contact id %q", arg)
	}
	return strconv.FormatInt(id, 10), nil
}

func printContacts(out io.Writer, contacts []api.Contact) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tEMAIL\tADDRESS")
	for _, c := range contacts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.Id, c.Name, c.Phone, c.Email, c.Address)
	}
	_ = w.Flush()
}
