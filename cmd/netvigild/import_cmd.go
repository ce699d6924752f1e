// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/netvigil/netvigil/internal/errors"
	"github.com/netvigil/netvigil/internal/store"
	"github.com/netvigil/netvigil/internal/vault"
)

// seedFile is the YAML inventory seed format:
//
//	devices:
//	  - customer: cliente_a
//	    device: borda-01
//	    vendor: mikrotik
//	    host: 192.168.88.1
//	    port: 22
//	    username: admin
//	    password: s3cret
//	    snmp_community: public
type seedFile struct {
	Devices []seedDevice `yaml:"devices"`
}

type seedDevice struct {
	Customer      string `yaml:"customer"`
	Device        string `yaml:"device"`
	Vendor        string `yaml:"vendor"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	Token         string `yaml:"token"`
	SNMPCommunity string `yaml:"snmp_community"`
}

// cmdImport seeds the inventory and vault from a YAML file. Rows that
// already exist are reported and skipped; the file is processed to the
// end either way.
func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "netvigil.hcl", "path to the HCL configuration file")
	file := fs.String("file", "", "YAML seed file")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("invalid seed file: %w", err)
	}

	a, err := buildApp(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	imported, skipped := 0, 0
	for _, d := range seed.Devices {
		if d.Port == 0 {
			d.Port = 22
		}
		err := a.store.CreateDevice(store.Device{
			CustomerID: d.Customer,
			DeviceID:   d.Device,
			Vendor:     d.Vendor,
			Host:       d.Host,
			Port:       d.Port,
		})
		if err != nil {
			if errors.GetKind(err) == errors.KindStoreConstraint {
				fmt.Printf("skipping %s/%s: already registered\n", d.Customer, d.Device)
				skipped++
				continue
			}
			return err
		}

		err = a.vault.Save(d.Customer, d.Device, vault.Credential{
			Host:          d.Host,
			Username:      d.Username,
			Password:      d.Password,
			Port:          d.Port,
			Token:         d.Token,
			SNMPCommunity: d.SNMPCommunity,
		})
		if err != nil {
			// Keep inventory and vault consistent, as onboarding does.
			a.store.DeleteDevice(d.Customer, d.Device)
			return err
		}
		imported++
	}

	fmt.Printf("import finished: %d imported, %d skipped\n", imported, skipped)
	return nil
}
