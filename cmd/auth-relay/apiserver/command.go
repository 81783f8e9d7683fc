package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/auth-relay/internal/business"
	"github.com/openkcm/auth-relay/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"Auth Relay API server",
		"Auth Relay API server hosts the public http API that starts logins, "+
			"receives the provider callback and hands tokens to polling clients.",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
