package pipeline

import (
	"github.com/GetPageSpeed/buildstrap/internal/expand"
)

const (
	rpmbuilderImage = "getpagespeed/rpmbuilder:<< parameters.dist >>"
	deployImage     = "kroniak/ssh-client"
	outputDir       = "/output"
	sourcesDir      = "/sources"
)

const commandSetNginxMacros = `[ -z ${PLESK+x} ] || echo "%plesk ${PLESK}" >> rpmmacros
# we generate both nginx-module-<foo> and sw-nginx-module-<foo> from a single spec file, so:
[ -z ${PLESK+x} ] || (echo >> rpmlint.config && echo 'addFilter ("E: invalid-spec-name")' >> rpmlint.config)
[ -z ${MOD+x} ] || echo "%_nginx_mod ${MOD}" >> rpmmacros
[ -z ${MOD+x} ] || (echo >> rpmlint.config && echo 'addFilter ("E: invalid-spec-name")' >> rpmlint.config)
`

const commandSpecFilesCleanup = `[[ ! -f ./cleanup.sh ]] || BRANCH="${CIRCLE_BRANCH}" ./cleanup.sh`

const commandCheckRPMFilesHalt = `if ls /output/*.rpm 1> /dev/null 2>&1; then
  echo "RPM files found. Proceeding with persistence to workspace."
  ls -al /output/*.rpm
else
  echo "No RPM files found. Halting the job."
  curl --request POST --url https://circleci.com/api/v2/workflow/$CIRCLE_WORKFLOW_ID/cancel --header "Circle-Token: ${CIRCLE_TOKEN}"
  circleci-agent step halt
fi`

// The remote path must stay inside double quotes so ~ expands on the build server.
const commandIncomingMkdir = `ssh -o StrictHostKeyChecking=no $GPS_BUILD_USER@$GPS_BUILD_SERVER "mkdir -p ~/incoming/${CIRCLE_PROJECT_REPONAME}/${DISTRO}/${ARCH}/${CIRCLE_BRANCH}"`

const commandDeployAllRPMs = `scp -o StrictHostKeyChecking=no -q -r *.rpm $GPS_BUILD_USER@$GPS_BUILD_SERVER:~/incoming/${CIRCLE_PROJECT_REPONAME}/${DISTRO}/${ARCH}/${CIRCLE_BRANCH}/`

const commandTriggerIncomingHook = `ssh -o StrictHostKeyChecking=no -q $GPS_BUILD_USER@$GPS_BUILD_SERVER "nohup ~/scripts/incoming.sh ${CIRCLE_PROJECT_REPONAME}/${DISTRO}/${ARCH}/${CIRCLE_BRANCH}/ > ~/incoming/$CIRCLE_PROJECT_REPONAME/$DISTRO/${ARCH}/${CIRCLE_BRANCH}/process.log 2>&1&"`

// Build assembles the full pipeline document for the given tuples.
func Build(tuples []expand.Tuple, opts Options) (*Document, error) {
	opts = opts.withDefaults()
	workflows, err := SynthesizeAll(tuples, opts)
	if err != nil {
		return nil, err
	}
	return &Document{
		Version: 2.1,
		Executors: Map{
			{Key: "deploy", Value: deployExecutor()},
			{Key: "rpmbuilder", Value: rpmbuilderExecutor(opts)},
		},
		Jobs: Map{
			{Key: "build", Value: buildJob(opts)},
			{Key: "deploy", Value: deployJob(opts)},
		},
		Workflows: workflows,
	}, nil
}

func deployExecutor() Executor {
	return Executor{
		Parameters: Params{
			{Name: "dist", Type: "string"},
			{Name: "arch", Type: "string"},
		},
		Docker:           []DockerImage{{Image: deployImage}},
		WorkingDirectory: outputDir,
		Environment: Map{
			{Key: "DISTRO", Value: "<< parameters.dist >>"},
			{Key: "ARCH", Value: "<< parameters.arch >>"},
		},
	}
}

func rpmbuilderExecutor(opts Options) Executor {
	e := Executor{
		Parameters: Params{
			{Name: "dist", Type: "string"},
			{Name: "rpmlint", Type: "integer", Default: 1},
			{Name: "enable_repos", Type: "string", Default: ""},
		},
		Docker:           []DockerImage{{Image: rpmbuilderImage}},
		WorkingDirectory: sourcesDir,
		Environment: Map{
			{Key: "RPMLINT", Value: "<< parameters.rpmlint >>"},
			{Key: "ENABLE_REPOS", Value: "<< parameters.enable_repos >>"},
		},
	}
	if opts.Kind.Nginx() {
		e.Parameters = append(e.Parameters,
			Param{Name: "plesk", Type: "integer", Default: 0},
			Param{Name: "mod", Type: "integer", Default: 0},
		)
		e.Environment.Set("PLESK", "<< parameters.plesk >>")
		e.Environment.Set("MOD", "<< parameters.mod >>")
	}
	return e
}

func buildJob(opts Options) Job {
	job := Job{
		Parameters: Params{
			{Name: "dist", Description: "The dist tag of OS to build for", Type: "string"},
			{Name: "enable_repos", Type: "string", Default: ""},
			{Name: "resource_class", Description: "The resource class to use for the build", Type: "string", Default: opts.ResourceClass},
		},
		ResourceClass: "<< parameters.resource_class >>",
		Executor: Map{
			{Key: "name", Value: "rpmbuilder"},
			{Key: "dist", Value: "<< parameters.dist >>"},
			{Key: "enable_repos", Value: "<< parameters.enable_repos >>"},
		},
		Steps: buildSteps(opts),
	}
	if opts.Kind.Nginx() {
		job.Parameters = append(job.Parameters,
			Param{Name: "plesk", Description: "Plesk major release version number, e.g. 18", Type: "integer", Default: 0},
			Param{Name: "mod", Description: "Set to 1 to build NGINX-MOD-specific module as well", Type: "integer", Default: 0},
		)
		job.Executor.Set("plesk", "<< parameters.plesk >>")
		job.Executor.Set("mod", "<< parameters.mod >>")
	}
	return job
}

func buildSteps(opts Options) []any {
	steps := []any{"checkout"}
	if opts.Kind.Nginx() {
		steps = append(steps,
			RunStep{Run: Run{
				Name:    "Set up RPM macro reflecting the NGINX branch",
				Command: `echo "%nginx_branch ${CIRCLE_BRANCH}" >> rpmmacros`,
			}},
			RunStep{Run: Run{
				Name:    "Set up %plesk macro if passed by a job",
				Command: Literal(commandSetNginxMacros),
			}},
			RunStep{Run: Run{
				Name:    "Run script to cleanup spec files that don't need rebuilding",
				Command: Literal(commandSpecFilesCleanup),
			}},
		)
	}
	return append(steps,
		RunStep{Run: Run{
			Name:    "Run the build itself: this will do rpmlint and check RPMs existence among other things.",
			Command: "build",
		}},
		RunStep{Run: Run{
			Name:    "Check for RPM files and halt if none exist",
			Command: Literal(commandCheckRPMFilesHalt),
		}},
		PersistStep{PersistToWorkspace: Workspace{Root: outputDir, Paths: []string{"*.rpm"}}},
	)
}

func deployJob(opts Options) Job {
	var attach AttachStep
	attach.AttachWorkspace.At = outputDir
	var keys SSHKeysStep
	keys.AddSSHKeys.Fingerprints = []string{opts.SSHFingerprint}

	return Job{
		Parallelism: 1,
		Parameters: Params{
			{Name: "dist", Description: "The dist tag of OS to deploy for", Type: "string"},
			{Name: "arch", Description: "The architecture to deploy for", Type: "string"},
		},
		Executor: Map{
			{Key: "name", Value: "deploy"},
			{Key: "dist", Value: "<< parameters.dist >>"},
			{Key: "arch", Value: "<< parameters.arch >>"},
		},
		Steps: []any{
			attach,
			keys,
			RunStep{Run: Run{
				Name:    "Ensure project specific upload directory to avoid deploy collisions",
				Command: Folded(commandIncomingMkdir),
			}},
			RunStep{Run: Run{
				Name:    "Deploy all RPMs to GetPageSpeed repo.",
				Command: Folded(commandDeployAllRPMs),
			}},
			RunStep{Run: Run{
				Name:    "Trigger Deploy Hook.",
				Command: Folded(commandTriggerIncomingHook),
			}},
		},
	}
}
