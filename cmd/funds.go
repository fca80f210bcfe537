package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fundsync/internal/config"
	"github.com/sells-group/fundsync/internal/model"
)

var fundsCmd = &cobra.Command{
	Use:   "funds",
	Short: "Print the monitored fund list after sheet filtering",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeFunds(cmd.OutOrStdout(), cfg)
	},
}

type fundList struct {
	Fundos           []model.Fund      `yaml:"fundos"`
	CategoriasLooker map[string]string `yaml:"categorias_looker,omitempty"`
}

func writeFunds(w io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fundList{Fundos: c.Fundos, CategoriasLooker: c.CategoriasLooker}); err != nil {
		return eris.Wrap(err, "funds: encode")
	}
	return enc.Close()
}

func init() {
	rootCmd.AddCommand(fundsCmd)
}
