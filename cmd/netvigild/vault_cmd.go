// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/netvigil/netvigil/internal/config"
	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/vault"
)

// cmdVault handles the vault subcommands: generate-key, set, list.
func cmdVault(args []string) error {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "generate-key":
		key, err := vault.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Printf("export %s=%s\n", vault.EnvMasterKey, key)
		return nil
	case "set":
		return cmdVaultSet(args)
	case "list":
		return cmdVaultList(args)
	default:
		return fmt.Errorf("usage: netvigild vault <generate-key|set|list>")
	}
}

func openVault(configPath string) (*vault.Vault, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	v, err := vault.Open(cfg.VaultPath(), logger)
	if err != nil {
		return nil, config.Config{}, err
	}
	return v, cfg, nil
}

func cmdVaultSet(args []string) error {
	fs := flag.NewFlagSet("vault set", flag.ExitOnError)
	configPath := fs.String("config", "netvigil.hcl", "path to the HCL configuration file")
	customer := fs.String("customer", "", "customer id")
	device := fs.String("device", "", "device id")
	host := fs.String("host", "", "device address")
	username := fs.String("username", "", "ssh username")
	port := fs.Int("port", 22, "ssh port")
	community := fs.String("snmp-community", "", "optional SNMP community")
	fs.Parse(args)

	if *customer == "" || *device == "" || *host == "" || *username == "" {
		return fmt.Errorf("customer, device, host and username are required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	v, _, err := openVault(*configPath)
	if err != nil {
		return err
	}

	err = v.Save(*customer, *device, vault.Credential{
		Host:          *host,
		Username:      *username,
		Password:      password,
		Port:          *port,
		SNMPCommunity: *community,
	})
	if err != nil {
		return err
	}
	fmt.Printf("credential stored for %s/%s\n", *customer, *device)
	return nil
}

func cmdVaultList(args []string) error {
	fs := flag.NewFlagSet("vault list", flag.ExitOnError)
	configPath := fs.String("config", "netvigil.hcl", "path to the HCL configuration file")
	customer := fs.String("customer", "", "list devices of one customer")
	fs.Parse(args)

	v, _, err := openVault(*configPath)
	if err != nil {
		return err
	}

	if *customer != "" {
		devices, err := v.ListDevices(*customer)
		if err != nil {
			return err
		}
		for _, d := range devices {
			fmt.Println(d)
		}
		return nil
	}

	customers, err := v.ListCustomers()
	if err != nil {
		return err
	}
	for _, c := range customers {
		fmt.Println(c)
	}
	return nil
}

// readPassword prompts on the TTY without echo, falling back to a plain
// line read when stdin is not a terminal (piped input).
func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
