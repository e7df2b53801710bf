package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/facelogin/pkg/auth"
	"github.com/MrCodeEU/facelogin/pkg/imageutil"
	"github.com/MrCodeEU/facelogin/pkg/storage"
)

var errNotAuthenticated = errors.New("not authenticated")

var enrollCmd = &cobra.Command{
	Use:   "enroll <user> <image>",
	Short: "Enroll a user from a single-face image",
	Args:  cobra.ExactArgs(2),
	RunE:  runEnroll,
}

var authenticateCmd = &cobra.Command{
	Use:   "authenticate <image>",
	Short: "Authenticate an image against all enrolled users",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthenticate,
}

var usersCmd = &cobra.Command{
	Use:     "users",
	Aliases: []string{"list"},
	Short:   "List enrolled users",
	Args:    cobra.NoArgs,
	RunE:    runUsers,
}

var removeCmd = &cobra.Command{
	Use:   "remove <user>",
	Short: "Remove a user's face data",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(enrollCmd, authenticateCmd, usersCmd, removeCmd)
	authenticateCmd.Flags().Bool("live", false, "Treat the image as a live frame")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	userID, path := args[0], args[1]

	img, err := imageutil.Open(path)
	if err != nil {
		return err
	}

	svc, cleanup, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Enroll(cmd.Context(), userID, img)
	if err != nil {
		return err
	}

	fmt.Printf("Enrolled '%s'\n", res.UserID)
	fmt.Printf("  Enrollment ID: %s\n", res.EnrollmentID)
	fmt.Printf("  Face region:   %dx%d at (%d,%d)\n", res.Region.Width, res.Region.Height, res.Region.X, res.Region.Y)
	if cfg.Recognition.DebugDir != "" {
		fmt.Printf("  Debug image:   %s/%s\n", cfg.Recognition.DebugDir, res.FaceImage)
	}
	return nil
}

func runAuthenticate(cmd *cobra.Command, args []string) error {
	img, err := imageutil.Open(args[0])
	if err != nil {
		return err
	}

	mode := auth.ModeUpload
	if live, _ := cmd.Flags().GetBool("live"); live {
		mode = auth.ModeLive
	}

	svc, cleanup, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.Authenticate(cmd.Context(), img, mode)
	if err != nil {
		return err
	}

	if !res.Authenticated {
		fmt.Printf("%s [%s]\n", res.Message, res.Reason)
		fmt.Printf("  Best similarity: %.4f (threshold %.2f)\n", res.Confidence, svc.Threshold())
		return errNotAuthenticated
	}

	fmt.Printf("%s: %s\n", res.Message, res.UserID)
	fmt.Printf("  Confidence:  %.4f\n", res.Confidence)
	fmt.Printf("  Login count: %d\n", res.LoginCount)
	return nil
}

func runUsers(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	list, err := svc.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if list.TotalUsers == 0 {
		fmt.Println("No users enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tREGISTERED\tLAST LOGIN\tLOGINS")
	for _, rec := range sortedUsers(list) {
		last := "never"
		if rec.LastLogin != nil {
			last = rec.LastLogin.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", rec.UserID, rec.RegisteredAt.Local().Format(time.DateTime), last, rec.LoginCount)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d user(s)\n", list.TotalUsers)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Face data for '%s' has been removed.\n", args[0])
	return nil
}

func sortedUsers(list *auth.UserList) []storage.UserRecord {
	records := make([]storage.UserRecord, 0, len(list.Users))
	for _, rec := range list.Users {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UserID < records[j].UserID
	})
	return records
}
