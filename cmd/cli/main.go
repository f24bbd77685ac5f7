package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "udhari-cli",
		Short: "Udhari credit ledger CLI",
		Long:  `A command line interface for shop staff to manage store-credit accounts.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the credit ledger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		openCmd(),
		summaryCmd(),
		statementCmd(),
		payCmd(),
		setLimitCmd(),
		outstandingCmd(),
		reconcileCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func openCmd() *cobra.Command {
	var limit string

	cmd := &cobra.Command{
		Use:   "open <account-id> <customer-name>",
		Short: "Open a store-credit account",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			body := map[string]string{
				"account_id":    args[0],
				"customer_name": args[1],
			}
			if limit != "" {
				body["credit_limit"] = limit
			}
			doRequest(http.MethodPost, "/api/v1/accounts", body)
		},
	}

	cmd.Flags().StringVar(&limit, "limit", "", "Credit limit (defaults to the server policy)")

	return cmd
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <account-id>",
		Short: "Show balance, limit and available credit",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			doRequest(http.MethodGet, "/api/v1/accounts/"+args[0]+"/summary", nil)
		},
	}
}

func statementCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "statement <account-id>",
		Short: "Show the transaction history for an account",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := fmt.Sprintf("/api/v1/accounts/%s/statement?limit=%d&offset=%d", args[0], limit, offset)
			doRequest(http.MethodGet, path, nil)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Max transactions to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Transactions to skip")

	return cmd
}

func payCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "pay <account-id> <amount>",
		Short: "Record a cash payment against an account",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			body := map[string]string{"amount": args[1]}
			if description != "" {
				body["description"] = description
			}
			doRequest(http.MethodPost, "/api/v1/accounts/"+args[0]+"/payments", body)
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Payment note")

	return cmd
}

func setLimitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-limit <account-id> <limit>",
		Short: "Change an account's credit limit",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			doRequest(http.MethodPut, "/api/v1/accounts/"+args[0]+"/credit-limit", map[string]string{
				"credit_limit": args[1],
			})
		},
	}
}

func outstandingCmd() *cobra.Command {
	var total bool

	cmd := &cobra.Command{
		Use:   "outstanding",
		Short: "List accounts that owe money",
		Run: func(cmd *cobra.Command, args []string) {
			if total {
				doRequest(http.MethodGet, "/api/v1/accounts/outstanding/total", nil)
				return
			}
			doRequest(http.MethodGet, "/api/v1/accounts/outstanding", nil)
		},
	}

	cmd.Flags().BoolVar(&total, "total", false, "Show only the aggregate total")

	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <account-id>",
		Short: "Replay the ledger and compare against the stored balance",
		Run: func(cmd *cobra.Command, args []string) {
			doRequest(http.MethodGet, "/api/v1/accounts/"+args[0]+"/reconcile", nil)
		},
		Args: cobra.ExactArgs(1),
	}
}

// doRequest performs an API call and pretty-prints the JSON response.
// Non-2xx responses terminate the process with a non-zero exit code.
func doRequest(method, path string, body any) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			fmt.Printf("Failed to encode request: %v\n", err)
			os.Exit(1)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		fmt.Printf("Failed to build request: %v\n", err)
		os.Exit(1)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Printf("Request FAILED (Status: %d)\nResponse: %s\n", resp.StatusCode, string(respBody))
		os.Exit(1)
	}

	var result any
	if err := json.Unmarshal(respBody, &result); err != nil {
		fmt.Printf("%s\n", string(respBody))
		return
	}

	printJSON(result)
}

func printJSON(v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to format response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}
