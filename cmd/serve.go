package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thothlabs/thoth/pkg/auth"
	"github.com/thothlabs/thoth/pkg/file"
	"github.com/thothlabs/thoth/pkg/service"
	"github.com/thothlabs/thoth/pkg/stores"
)

var (
	addrFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := buildPipeline()
			if err != nil {
				return err
			}

			db, err := stores.Open(viper.GetString("database.path"))
			if err != nil {
				return err
			}
			defer db.Close()

			uploads, err := buildUploadStore(cmd.Context())
			if err != nil {
				return err
			}

			authService := auth.NewService(viper.GetString("server.secret"))

			addr := addrFlag
			if addr == "" {
				addr = viper.GetString("server.addr")
			}

			srv := service.NewServer(
				pipeline, db, uploads, authService,
				service.WithAddr(addr),
			)
			return srv.Start()
		},
	}
)

/*
buildUploadStore picks between local disk and an S3 bucket based on the
uploads section of the config.
*/
func buildUploadStore(ctx context.Context) (file.Store, error) {
	if viper.GetBool("uploads.s3.enabled") {
		return file.NewS3Store(ctx, file.S3Config{
			Endpoint:  viper.GetString("uploads.s3.endpoint"),
			Bucket:    viper.GetString("uploads.s3.bucket"),
			AccessKey: viper.GetString("uploads.s3.access_key"),
			SecretKey: viper.GetString("uploads.s3.secret_key"),
			Secure:    viper.GetBool("uploads.s3.secure"),
		})
	}

	return file.NewDiskStore(viper.GetString("uploads.dir"))
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&addrFlag, "addr", "a", "", "Address to listen on, overriding the config")
}

var longServe = `
Serve the query pipeline and upload storage over HTTP.

Examples:
  # Serve on the configured address
  thoth serve

  # Serve on a specific port
  thoth serve --addr :9000
`
