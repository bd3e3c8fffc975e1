package main

import (
	"flag"
	"net"

	"github.com/chazu/scriptc/server"
)

func compileEnv(p *project) (*server.CompileEnv, func(), error) {
	env := &server.CompileEnv{Options: p.options()}
	c, err := p.openCache()
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return env, func() {}, nil
	}
	env.Cache = c
	return env, func() { c.Close() }, nil
}

func runServe(p *project, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", p.manifest.Server.Address, "Connect listen address")
	grpcAddr := fs.String("grpc", p.manifest.Server.GrpcAddress, "gRPC health listen address (empty disables)")
	fs.Parse(args)

	env, release, err := compileEnv(p)
	if err != nil {
		return err
	}
	defer release()

	srv := server.New(env)
	defer srv.Stop()

	if *grpcAddr != "" {
		lis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.ServeGRPC(lis); err != nil {
				log.Errorf("grpc: %s", err)
			}
		}()
	}
	return srv.ListenAndServe(*addr)
}

func runLSP(p *project, args []string) error {
	env, release, err := compileEnv(p)
	if err != nil {
		return err
	}
	defer release()

	worker := server.NewCompileWorker(env)
	defer worker.Stop()
	return server.NewLSP(worker).Run()
}
