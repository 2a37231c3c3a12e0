// Package opcua exposes twin values as variable nodes of an OPC UA server.
package opcua

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/awcullen/opcua/server"
	"github.com/awcullen/opcua/ua"
	"github.com/rs/zerolog/log"

	"github.com/sebastiankruger/fiber-twin/internal/core"
)

const (
	defaultPKIDir  = "./pki"
	applicationURI = "urn:fiber-twin:fred"
	productURI     = "urn:fiber-twin"
)

// folder is one object folder of variable nodes in a namespace.
type folder struct {
	namespace uint16
	name      string
	desc      string
	defs      []core.NodeDefinition
	varNodes  map[string]*server.VariableNode
	values    map[string]interface{}
}

// Server wraps the OPC UA server. Folders registered before Start are added
// to the address space when the server comes up; until then, and when the
// server cannot be created, values are only kept locally.
type Server struct {
	port    int
	appName string
	pkiDir  string

	srv   *server.Server
	ready atomic.Bool

	mu      sync.RWMutex
	folders map[string]*folder
}

// Option configures a Server.
type Option func(*Server)

// WithPKIDir sets the directory holding the server certificate and key.
func WithPKIDir(dir string) Option {
	return func(s *Server) { s.pkiDir = dir }
}

// NewServer creates a server listening on port once started.
func NewServer(port int, appName string, opts ...Option) *Server {
	s := &Server{
		port:    port,
		appName: appName,
		pkiDir:  defaultPKIDir,
		folders: make(map[string]*folder),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start brings up the OPC UA endpoint. Failure to create the server is logged
// and leaves the twin running without OPC UA exposure.
func (s *Server) Start(ctx context.Context) error {
	endpoint := fmt.Sprintf("opc.tcp://0.0.0.0:%d", s.port)
	log.Info().
		Int("port", s.port).
		Str("endpoint", endpoint).
		Msg("Starting OPC UA server")

	certPath, keyPath, err := ensurePKI(s.pkiDir, s.appName, applicationURI)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create PKI - OPC UA server disabled")
		return nil
	}

	srv := s.newServer(endpoint, certPath, keyPath)
	if srv == nil {
		log.Info().Msg("OPC UA server disabled - twin values are served over HTTP only")
		return nil
	}

	s.mu.Lock()
	s.srv = srv
	count := 0
	for _, f := range s.folders {
		count += s.addToAddressSpace(f)
	}
	s.mu.Unlock()
	log.Info().Int("count", count).Msg("OPC UA nodes registered in address space")

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("OPC UA server panic")
			}
			s.ready.Store(false)
		}()
		s.ready.Store(true)
		if err := srv.ListenAndServe(); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("OPC UA server error")
		}
	}()

	log.Info().Msg("OPC UA server started successfully")
	return nil
}

func (s *Server) newServer(endpoint, certPath, keyPath string) (srv *server.Server) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("OPC UA server creation panicked")
			srv = nil
		}
	}()

	srv, err := server.New(
		ua.ApplicationDescription{
			ApplicationURI:  applicationURI,
			ProductURI:      productURI,
			ApplicationName: ua.LocalizedText{Text: s.appName, Locale: "en"},
			ApplicationType: ua.ApplicationTypeServer,
		},
		certPath,
		keyPath,
		endpoint,
		server.WithAnonymousIdentity(true),
		server.WithSecurityPolicyNone(true),
		server.WithInsecureSkipVerify(),
	)
	if err != nil {
		log.Warn().Err(err).Msg("OPC UA server creation failed")
		return nil
	}
	return srv
}

// Ready reports whether the endpoint is serving.
func (s *Server) Ready() bool { return s.ready.Load() }

// Stop closes the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.srv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	s.ready.Store(false)
	return srv.Close()
}

// Register adds a folder of variable nodes under the Objects folder.
func (s *Server) Register(nsIndex uint16, name, desc string, defs []core.NodeDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.folders[name]; exists {
		return fmt.Errorf("folder %q already registered", name)
	}
	f := &folder{
		namespace: nsIndex,
		name:      name,
		desc:      desc,
		defs:      defs,
		varNodes:  make(map[string]*server.VariableNode, len(defs)),
		values:    make(map[string]interface{}, len(defs)),
	}
	for _, def := range defs {
		f.values[def.Name] = def.InitialValue
	}
	s.folders[name] = f

	if s.srv != nil {
		s.addToAddressSpace(f)
	}
	log.Info().
		Uint16("namespace", nsIndex).
		Str("folder", name).
		Int("nodes", len(defs)).
		Msg("Registered OPC UA folder")
	return nil
}

// addToAddressSpace creates the folder and variable nodes of f. s.mu must be
// held.
func (s *Server) addToAddressSpace(f *folder) int {
	nm := s.srv.NamespaceManager()
	folderID := ua.NodeIDString{NamespaceIndex: f.namespace, ID: f.name}

	nm.AddNode(server.NewObjectNode(
		s.srv,
		folderID,
		ua.QualifiedName{NamespaceIndex: f.namespace, Name: f.name},
		ua.LocalizedText{Text: f.name},
		ua.LocalizedText{Text: f.desc},
		nil,
		[]ua.Reference{{
			ReferenceTypeID: ua.ReferenceTypeIDOrganizes,
			IsInverse:       true,
			TargetID:        ua.ExpandedNodeID{NodeID: ua.ObjectIDObjectsFolder},
		}},
		0,
	))

	now := time.Now().UTC()
	for _, def := range f.defs {
		node := server.NewVariableNode(
			s.srv,
			ua.NodeIDString{NamespaceIndex: f.namespace, ID: f.name + "." + def.Name},
			ua.QualifiedName{NamespaceIndex: f.namespace, Name: def.Name},
			ua.LocalizedText{Text: def.DisplayName},
			ua.LocalizedText{Text: def.Description},
			nil,
			[]ua.Reference{{
				ReferenceTypeID: ua.ReferenceTypeIDHasComponent,
				IsInverse:       true,
				TargetID:        ua.ExpandedNodeID{NodeID: folderID},
			}},
			ua.NewDataValue(f.values[def.Name], 0, now, 0, now, 0),
			core.OPCUADataType(def.DataType),
			ua.ValueRankScalar,
			[]uint32{},
			ua.AccessLevelsCurrentRead,
			250.0,
			false,
			nil,
		)
		nm.AddNode(node)
		f.varNodes[def.Name] = node
	}
	return len(f.defs)
}

// Update stores values for the named folder and pushes them to the address
// space. Unknown names are ignored.
func (s *Server) Update(name string, values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[name]
	if !ok {
		return
	}
	now := time.Now().UTC()
	for key, value := range values {
		if _, known := f.values[key]; !known {
			continue
		}
		f.values[key] = value
		if node, ok := f.varNodes[key]; ok {
			node.SetValue(ua.NewDataValue(value, 0, now, 0, now, 0))
		}
	}
}

// Value returns the last value stored for a node.
func (s *Server) Value(folderName, node string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.folders[folderName]
	if !ok {
		return nil, false
	}
	v, ok := f.values[node]
	return v, ok
}

// Values returns a copy of every value in the folder.
func (s *Server) Values(folderName string) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.folders[folderName]
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Run refreshes the named folder from sample every interval until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, name string, interval time.Duration, sample func() map[string]interface{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Update(name, sample())
		}
	}
}
