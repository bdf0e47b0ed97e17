package sqlinline

const QEnsureProjectsTable = `--sql 3c4b9a1e-6f20-4d8e-9b51-0a7e2f6c81d4
create table if not exists projects (
  id text primary key,
  title text not null default '',
  created_at text not null default '',
  status text not null default 'created',
  mode text not null default 'story',
  state jsonb not null default '{}'::jsonb,
  updated_at timestamptz not null default now()
);
`

const QListProjects = `--sql 9e17c0d2-41b8-4a6f-8d3c-5b2e7f90a1c6
select id, title, created_at, status, mode
from projects
order by id asc;
`

const QInsertProject = `--sql 5b0f8e3a-27c1-4d94-a6e2-c83d1f4b7a05
insert into projects (id, title, created_at, status, mode, state, updated_at)
values ($1::text, $2::text, $3::text, $4::text, $5::text, $6::jsonb, now());
`

const QSelectProject = `--sql e2a6d5c7-90b3-4f18-b7e4-16c9a0d83f52
select id, title, created_at, status, mode, state
from projects
where id = $1::text
limit 1;
`

const QUpdateProjectMeta = `--sql 71d3f4b8-0c5e-4a29-9f6d-e48a2b1c5d73
update projects
set title = $2::text,
    status = $3::text,
    mode = $4::text,
    updated_at = now()
where id = $1::text;
`

const QUpdateProjectState = `--sql a84c2e61-5d7f-4b03-8e19-3f6b0d92c4e8
update projects
set state = $2::jsonb,
    updated_at = now()
where id = $1::text;
`

const QDeleteProject = `--sql 0f9b7a3d-e1c6-4852-b4a0-7d2e5c8f1b96
delete from projects
where id = $1::text;
`
