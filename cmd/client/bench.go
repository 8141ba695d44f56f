package main

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	api "gitlab.com/dirk.krummacker/contact-book/pkg/model"
)

var benchSizes []int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure the average latency of POST, PUT, GET and DELETE in microseconds",
	Long: `Creates, updates, reads and deletes growing numbers of contacts of the
logged-in user and prints the average time per request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(newClient(), cmd.OutOrStdout(), benchSizes)
	},
}

func init() {
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", []int{1000, 5000, 10000}, "number of contacts per round")
}

func runBench(c *client, out io.Writer, sizes []int) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Elements      POST       PUT       GET    DELETE ")
	fmt.Fprintln(out, "---------------------------------------------------")
	for round, loops := range sizes {
		fmt.Fprintf(out, "%10d", loops)
		ids := make([]int64, 0, loops)
		var duration time.Duration
		for i := 0; i < loops; i++ {
			contact := api.Contact{Name: "Marcus Antonius", Phone: fmt.Sprintf("+39 %d-%d", round, i)}
			before := time.Now()
			var created api.Contact
			if err := c.sendJSON(http.MethodPost, "/contacts", contact, &created); err != nil {
				return err
			}
			duration += time.Since(before)
			ids = append(ids, created.Id)
		}
		fmt.Fprintf(out, "%10d", average(duration, loops))

		for _, method := range []string{http.MethodPut, http.MethodGet, http.MethodDelete} {
			rand.Shuffle(len(ids), func(i, j int) {
				ids[i], ids[j] = ids[j], ids[i]
			})
			duration = 0
			for _, id := range ids {
				var payload interface{}
				if method == http.MethodPut {
					payload = api.Contact{Name: "Marcus Antonius", Phone: fmt.Sprintf("+40 %d-%d", round, id)}
				}
				before := time.Now()
				if err := c.sendJSON(method, "/contacts/"+strconv.FormatInt(id, 10), payload, nil); err != nil {
					return err
				}
				duration += time.Since(before)
			}
			fmt.Fprintf(out, "%10d", average(duration, loops))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func average(total time.Duration, loops int) int64 {
	if loops == 0 {
		return 0
	}
	return total.Microseconds() / int64(loops)
}
