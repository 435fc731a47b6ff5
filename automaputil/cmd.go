/*
Copyright © 2026 the automap authors.
This file is part of automap.

automap is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

automap is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with automap.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package automaputil holds the command-line interface for automap.
package automaputil

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/automap"
	"github.com/spatialmodel/automap/cloud"
	"github.com/spatialmodel/automap/ncraster"
	"github.com/spatialmodel/automap/thematic"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log is the logger used by the commands.
var Log = logrus.New()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to automap.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location. TOML, YAML
              and JSON files are accepted.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "envfile",
			usage: `
              envfile specifies a file of KEY=value lines to be added to the
              environment before the configuration is read.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "verbose",
			usage: `
              verbose turns on debug messages.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "infile",
			usage: `
              infile is the path to the NetCDF file holding the gridded
              variables. It can include environment variables.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterCmd.Flags()},
		},
		{
			name: "outdir",
			usage: `
              outdir is the directory the rasters are written to. It is created
              if it does not exist and can include environment variables.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterCmd.Flags()},
		},
		{
			name: "timeslice",
			usage: `
              timeslice is the index of the time slice to map for variables
              with a time dimension.`,
			shorthand:  "t",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{rasterCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of variables converted at the same time.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{rasterCmd.Flags()},
		},
		{
			name: "points",
			usage: `
              points specifies whether the point layer each raster is made from
              should be kept as a shapefile.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{rasterCmd.Flags()},
		},
		{
			name: "variables",
			usage: `
              variables restricts the conversion to the listed variables.
              By default every variable with lat and lon dimensions is converted.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{rasterCmd.Flags()},
		},
		{
			name: "publish",
			usage: `
              publish is a blob storage location such as 'gs://bucket/prefix',
              's3://bucket/prefix' or 'file:///dir' that the output files are
              uploaded to after they are written. Outputs are only kept locally
              if it is empty.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterCmd.Flags(), mapsCmd.Flags()},
		},
		{
			name: "workdir",
			usage: `
              workdir is the folder holding the map inputs. Maps and map
              documents are saved there.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "background",
			usage: `
              background is the map document giving the page layout and
              background layers. '#' uses worldBackground.toml in workdir
              if it exists.`,
			defaultVal: "#",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "workbook",
			usage: `
              workbook is the Excel workbook (or CSV file) holding the map data.
              '#' uses MapData.xlsx in workdir.`,
			defaultVal: "#",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "datasheet",
			usage: `
              datasheet is the workbook sheet holding the values to map.
              '#' uses ForMaps$.`,
			defaultVal: "#",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "fieldsheet",
			usage: `
              fieldsheet is the workbook sheet listing the fields to map
              and their titles. '#' uses FieldTable$.`,
			defaultVal: "#",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "workspace",
			usage: `
              workspace is the folder the converted tables and joined
              features are written to. '#' uses data.gdb in workdir.`,
			defaultVal: "#",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "shapefile",
			usage: `
              shapefile is the boundary layer the data are joined to.
              '#' uses worldCountries.shp in workdir.`,
			defaultVal: "#",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "symbology",
			usage: `
              symbology is the TOML file giving the class breaks and colors.
              '#' uses symbology.toml in workdir if it exists; otherwise
              quantile classes are calculated for each map.`,
			defaultVal: "#",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "keyfield",
			usage: `
              keyfield is the field shared by the data sheet and the shapefile.`,
			defaultVal: "CntryCode",
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "simplify",
			usage: `
              simplify is the tolerance, in map units, that geometry is
              simplified with before drawing. 0 turns simplification off.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
		{
			name: "open",
			usage: `
              open specifies whether each map should be opened after it is exported.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{mapsCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("AUTOMAP")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(rasterCmd)
	Root.AddCommand(mapsCmd)
}

// setConfig loads the environment file and the configuration file,
// if there are any, and sets up logging.
func setConfig() error {
	if envfile := Cfg.GetString("envfile"); envfile != "" {
		if err := godotenv.Load(os.ExpandEnv(envfile)); err != nil {
			return fmt.Errorf("automap: problem reading environment file: %v", err)
		}
	}
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("automap: problem reading configuration file: %v", err)
		}
	}
	Log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if Cfg.GetBool("verbose") {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "automap",
	Short: "Automated raster conversion and thematic map export.",
	Long: `automap converts the gridded variables of NetCDF files into rasters and
exports batches of thematic maps from spreadsheet data joined to boundary
shapefiles. Use the subcommands specified below to access this functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'AUTOMAP_var' where 'var' is the
name of the variable to be set. Paths are additionally allowed to contain
environment variables within them.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of automap.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("automap v%s\n", automap.Version)
	},
	DisableAutoGenTag: true,
}

// rasterCmd converts NetCDF variables to rasters.
var rasterCmd = &cobra.Command{
	Use:   "raster",
	Short: "Convert NetCDF variables to rasters.",
	Long: `raster converts every variable in a NetCDF file that has lat and lon
dimensions into an ESRI ASCII grid raster in the output directory. The grid
resolution is the spacing of the first two latitudes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := RasterConfig(Cfg)
		if err != nil {
			return err
		}
		ctx := context.Background()
		c := &ncraster.Converter{Config: cfg, Log: Log}
		report, err := c.Convert(ctx)
		if report != nil {
			if perr := publish(ctx, report.Files()); perr != nil && err == nil {
				err = perr
			}
		}
		return err
	},
	DisableAutoGenTag: true,
}

// mapsCmd exports thematic maps.
var mapsCmd = &cobra.Command{
	Use:   "maps",
	Short: "Export thematic maps of workbook data.",
	Long: `maps joins the data sheet of a workbook to a boundary shapefile and
exports one PDF map, with its map document, for each field listed in the
workbook's field sheet. Arguments given as '#' take their default values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := MapsConfig(Cfg)
		if err != nil {
			return err
		}
		ctx := context.Background()
		a := &thematic.Automap{Config: cfg, Log: Log}
		report, err := a.Run(ctx)
		if report != nil {
			if perr := publish(ctx, report.Files()); perr != nil && err == nil {
				err = perr
			}
		}
		return err
	},
	DisableAutoGenTag: true,
}

// publish uploads files to the location given by the publish option,
// if there is one.
func publish(ctx context.Context, files []string) error {
	dest := os.ExpandEnv(Cfg.GetString("publish"))
	if dest == "" || len(files) == 0 {
		return nil
	}
	if !cloud.IsBlob(dest) {
		return fmt.Errorf("automap: publish location %s is not a blob storage location", dest)
	}
	urls, err := cloud.Publish(ctx, dest, files, Log)
	if err != nil {
		return err
	}
	Log.WithField("location", dest).Infof("published %d files", len(urls))
	return nil
}
